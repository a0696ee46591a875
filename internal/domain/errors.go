package domain

import "errors"

// 错误分类基准值。业务代码用 fmt.Errorf("...: %w", ErrAccessDenied)
// 包装出具体错误，传输层按 errors.Is 映射 HTTP 状态码。
var (
	// ErrAccessDenied 守卫/可见性失败：用户无权创建、发送或查看。
	ErrAccessDenied = errors.New("access denied")
	// ErrValidation 校验失败：空正文、非法类型、跨线程回复等。
	ErrValidation = errors.New("validation failed")
	// ErrRateLimited 发送频率超限。
	ErrRateLimited = errors.New("rate limited")
	// ErrNotFound 线程/消息/用户不存在。
	ErrNotFound = errors.New("not found")
	// ErrTransientDelivery 可重试的投递失败（链接预览抓取）。
	ErrTransientDelivery = errors.New("transient delivery failure")
)

// 线程挂靠约束错误。
var (
	ErrThreadMultipleUnits = errors.New("thread references more than one work unit")
	ErrThreadUnitMismatch  = errors.New("thread type does not match populated unit reference")
)
