package utils

import (
	"strconv"
	"sync"
)

// IDGenerator 单调递增的序号生成器，与集合长度无关
type IDGenerator struct {
	counter int64
	mutex   sync.Mutex
}

func NewIDGenerator(start int64) *IDGenerator {
	return &IDGenerator{counter: start}
}

func (g *IDGenerator) Next() int64 {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.counter++
	return g.counter
}

func (g *IDGenerator) NextString() string {
	return strconv.FormatInt(g.Next(), 10)
}

// Observe 保证之后生成的序号大于 n，用于导入已有数据后
func (g *IDGenerator) Observe(n int64) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if n > g.counter {
		g.counter = n
	}
}

func Deref[T any](p *T, defaultValue T) T {
	if p != nil {
		return *p
	}
	return defaultValue
}
