package middleware

// User-facing messages are localized for the site's audience.
const (
	msgServerError = "Lỗi server."

	MsgRegisterRateLimited = "Quá nhiều yêu cầu đăng ký, vui lòng thử lại sau."
	MsgTrackRateLimited    = "Quá nhiều yêu cầu tracking, vui lòng thử lại sau."
)
