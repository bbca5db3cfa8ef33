package saasAuth

const (
	auditEventLoginSuccess            = "login_success"
	auditEventLoginFailure            = "login_failure"
	auditEventTwoFactorRequired       = "two_factor_required"
	auditEventTwoFactorFailure        = "two_factor_failure"
	auditEventRegisterSuccess         = "register_success"
	auditEventRegisterFailure         = "register_failure"
	auditEventSessionRefresh          = "session_refresh"
	auditEventLogout                  = "logout"
	auditEventLogoutAll               = "logout_all"
	auditEventPasswordResetRequest    = "password_reset_request"
	auditEventPasswordResetConfirm    = "password_reset_confirm"
	auditEventEmailVerificationSend   = "email_verification_request"
	auditEventEmailVerificationVerify = "email_verification_confirm"
	auditEventUserUpdate              = "user_update"
	auditEventTwoFactorBegin          = "two_factor_setup_requested"
	auditEventTwoFactorEnabled        = "two_factor_enabled"
	auditEventTwoFactorDisabled       = "two_factor_disabled"
	auditEventAbuseBanned             = "abuse_banned"
	auditEventPasswordUpgraded        = "password_upgraded"
)
