package progress

import "errors"

var (
	ErrChapterNotInCourse = errors.New("chapter does not belong to this course")
	ErrProgressOutOfRange = errors.New("progress must be between 0 and 100")
)
