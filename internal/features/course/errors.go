package course

import "errors"

var (
	ErrCourseNotFound  = errors.New("course not found")
	ErrModuleNotFound  = errors.New("course module not found")
	ErrChapterNotFound = errors.New("chapter not found")
	ErrNameRequired    = errors.New("name is required")
)
