package accessrequest

import "errors"

var (
	ErrRequestNotFound   = errors.New("access request not found")
	ErrRequestNotPending = errors.New("access request is not pending")
	ErrDuplicatePending  = errors.New("a pending request already exists for this course")
	ErrNotStudent        = errors.New("only students can request course access")
)
