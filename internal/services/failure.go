package services

import (
	"fmt"
	"strings"
)

// Stages say where in the pipeline a request failed.
const (
	StageInput     = "input"
	StageEnv       = "env"
	StageRateQuery = "rate_query"
	StageRateLimit = "rate_limit"
	StageDBInsert  = "db_insert"
	StageSolapi    = "solapi"
	StageVerify    = "verify"
	StageDB        = "db"
	StageProfile   = "profile"
	StageIdentity  = "identity"
	StageFatal     = "fatal"
)

// Reasons are the stable codes clients branch on.
const (
	ReasonInvalidPhone  = "INVALID_PHONE"
	ReasonTooFrequent   = "TOO_FREQUENT"
	ReasonEnvMissing    = "ENV_MISSING"
	ReasonRateQueryFail = "RATE_QUERY_FAIL"
	ReasonDBInsert      = "DB_INSERT"
	ReasonMsgInvalid    = "MSG_INVALID"
	ReasonNumberInvalid = "NUMBER_INVALID"
	ReasonDailyLimit    = "DAILY_LIMIT"
	ReasonSolapiRate    = "SOLAPI_RATE"
	ReasonSolapiError   = "SOLAPI_ERROR"
	ReasonFatal         = "FATAL"

	ReasonInvalidInput = "INVALID_INPUT"
	ReasonNotFound     = "NOT_FOUND"
	ReasonExpired      = "EXPIRED"
	ReasonWrongCode    = "WRONG_CODE"
	ReasonNoProfile    = "NO_PROFILE"
	ReasonNoEmail      = "NO_EMAIL"
	ReasonServerError  = "SERVER_ERROR"
)

// Failure is a classified, client-reportable error.
type Failure struct {
	Stage      string
	Reason     string
	Detail     string
	RetryAfter int      // seconds, TOO_FREQUENT only
	Missing    []string // ENV_MISSING only
	Err        error
}

func (f *Failure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s at %s", f.Reason, f.Stage)
	if len(f.Missing) > 0 {
		fmt.Fprintf(&b, " (missing %s)", strings.Join(f.Missing, ", "))
	}
	if f.Err != nil {
		fmt.Fprintf(&b, ": %v", f.Err)
	}
	return b.String()
}

func (f *Failure) Unwrap() error { return f.Err }

func fail(stage, reason string, err error) *Failure {
	f := &Failure{Stage: stage, Reason: reason, Err: err}
	if err != nil {
		f.Detail = err.Error()
	}
	return f
}
