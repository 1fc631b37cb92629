package mxm

// User 当前会话用户，IsAdmin 是会话内可切换的开关，不是经过认证的角色
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"isAdmin"`
}

// CanView 管理员可见全部反馈，普通用户只能看到自己提交的
func (u User) CanView(f *Feedback) bool {
	if f == nil {
		return false
	}
	return u.IsAdmin || u.ID == f.AuthorID
}

// CanChangeStatus 状态修改权限：管理员或反馈作者
// 界面控件显示与 store 的校验都用这一个判断
func (u User) CanChangeStatus(f *Feedback) bool {
	if f == nil {
		return false
	}
	return u.IsAdmin || u.ID == f.AuthorID
}

// WithAdmin 返回切换角色后的用户
func (u User) WithAdmin(isAdmin bool) User {
	u.IsAdmin = isAdmin
	return u
}
