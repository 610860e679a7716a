package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden       ErrCode = "FORBIDDEN"
	ErrAdminAccessOnly ErrCode = "ADMIN_ACCESS_ONLY"
	ErrNotSessionOwner ErrCode = "NOT_SESSION_OWNER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidAnswer  ErrCode = "INVALID_ANSWER"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrExamNotFound    ErrCode = "EXAM_NOT_FOUND"
	ErrSessionNotFound ErrCode = "SESSION_NOT_FOUND"
	ErrQuestionUnknown ErrCode = "QUESTION_UNKNOWN"

	// ─── Exam session ──────────────────────────────────────────────────
	ErrNoQuestions       ErrCode = "NO_QUESTIONS"
	ErrQuestionUnusable  ErrCode = "QUESTION_UNUSABLE"
	ErrInputLocked       ErrCode = "INPUT_LOCKED"
	ErrSessionFinished   ErrCode = "SESSION_FINISHED"
	ErrAlreadySubmitting ErrCode = "ALREADY_SUBMITTING"
	ErrAlreadySubmitted  ErrCode = "ALREADY_SUBMITTED"
	ErrNotFailed         ErrCode = "SUBMISSION_NOT_FAILED"
	ErrSubmitFailed      ErrCode = "SUBMIT_FAILED"
	ErrResultNotReady    ErrCode = "RESULT_NOT_READY"
	ErrLeaveBlocked      ErrCode = "LEAVE_BLOCKED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal           ErrCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrCode = "SERVICE_UNAVAILABLE"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "로그인이 필요합니다."
	case ErrTokenInvalid:
		return "인증 정보가 올바르지 않습니다."
	case ErrTokenExpired:
		return "로그인이 만료되었습니다. 다시 로그인해 주세요."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "이 리소스에 접근할 권한이 없습니다."
	case ErrAdminAccessOnly:
		return "관리자만 접근할 수 있습니다."
	case ErrNotSessionOwner:
		return "본인의 시험 세션이 아닙니다."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "입력값을 확인해 주세요."
	case ErrInvalidID:
		return "ID 형식이 올바르지 않습니다."
	case ErrInvalidPayload:
		return "요청 형식이 올바르지 않습니다."
	case ErrInvalidAnswer:
		return "문항 유형에 맞지 않는 답안입니다."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "요청한 리소스를 찾을 수 없습니다."
	case ErrExamNotFound:
		return "시험을 찾을 수 없거나 공개되지 않았습니다."
	case ErrSessionNotFound:
		return "시험 세션을 찾을 수 없습니다."
	case ErrQuestionUnknown:
		return "이 시험에 없는 문항입니다."

	// ─── Exam session ──────────────────────────────────────────────────
	case ErrNoQuestions:
		return "이 시험에는 문항이 없습니다."
	case ErrQuestionUnusable:
		return "문항 데이터에 오류가 있어 답안을 입력할 수 없습니다."
	case ErrInputLocked:
		return "제출이 시작되어 답안을 더 이상 수정할 수 없습니다."
	case ErrSessionFinished:
		return "이미 종료된 시험입니다."
	case ErrAlreadySubmitting:
		return "제출 중입니다. 잠시만 기다려 주세요."
	case ErrAlreadySubmitted:
		return "이미 제출된 시험입니다."
	case ErrNotFailed:
		return "재시도할 실패한 제출이 없습니다."
	case ErrSubmitFailed:
		return "제출에 실패했습니다. 다시 시도해 주세요."
	case ErrResultNotReady:
		return "아직 채점이 완료되지 않았습니다."
	case ErrLeaveBlocked:
		return "시험이 진행 중입니다. 제출 후에 나갈 수 있습니다."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "요청이 너무 많습니다. 잠시 후 다시 시도해 주세요."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "서버 내부 오류가 발생했습니다."
	case ErrServiceUnavailable:
		return "일시적으로 서비스를 이용할 수 없습니다."
	default:
		return "알 수 없는 오류가 발생했습니다."
	}
}
