package course

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/pkg/pagination"
	"github.com/enrollhub/enrollment-server-go/pkg/validation"
	"github.com/enrollhub/enrollment-server-go/pkg/types"
)

// Course represents a course students can be enrolled into.
type Course struct {
	types.BaseModel

	Name        string  `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Description *string `gorm:"type:varchar(400)" json:"description,omitempty"`
	Order       int     `gorm:"type:int;not null;default:0" json:"order"`
	Active      bool    `gorm:"type:boolean;not null;default:true;column:is_active" json:"isActive"`
}

// TableName overrides the default table name.
func (Course) TableName() string { return "courses" }

// CourseModule groups chapters inside a course.
type CourseModule struct {
	types.BaseModel

	CourseID uuid.UUID `gorm:"type:uuid;not null;column:course_id;index" json:"courseId"`
	Name     string    `gorm:"type:varchar(100);not null" json:"name"`
	Order    int       `gorm:"type:int;not null;default:0" json:"order"`
}

// TableName overrides the default table name.
func (CourseModule) TableName() string { return "course_modules" }

// Chapter is the unit progress tracking counts. A chapter belongs to a course
// through its module and may carry a video and a quiz.
type Chapter struct {
	types.BaseModel

	ModuleID uuid.UUID  `gorm:"type:uuid;not null;column:module_id;index" json:"moduleId"`
	Name     string     `gorm:"type:varchar(100);not null" json:"name"`
	VideoID  *string    `gorm:"type:varchar(255);column:video_id" json:"videoId,omitempty"`
	QuizID   *uuid.UUID `gorm:"type:uuid;column:quiz_id" json:"quizId,omitempty"`
	Order    int        `gorm:"type:int;not null;default:0" json:"order"`
}

// TableName overrides the default table name.
func (Chapter) TableName() string { return "chapters" }

// ListFilters defines course query filters.
type ListFilters struct {
	Keyword    string
	ActiveOnly bool
}

// List retrieves paginated courses with filters.
func List(db *gorm.DB, filters ListFilters, params pagination.Params) ([]Course, int64, error) {
	query := db.Model(&Course{})

	if filters.Keyword != "" {
		keyword := "%" + strings.ToLower(filters.Keyword) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", keyword, keyword)
	}
	if filters.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var courses []Course
	err := query.
		Order("\"order\" ASC, name ASC").
		Offset(params.Skip).
		Limit(params.Limit).
		Find(&courses).Error

	return courses, total, err
}

// Get retrieves a course by ID.
func Get(db *gorm.DB, id uuid.UUID) (Course, error) {
	var c Course
	if err := db.First(&c, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c, ErrCourseNotFound
		}
		return c, err
	}
	return c, nil
}

// Exists reports whether a course with the given ID exists.
func Exists(db *gorm.DB, id uuid.UUID) (bool, error) {
	var count int64
	if err := db.Model(&Course{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a new course.
func Create(db *gorm.DB, name string, description *string, order int) (Course, error) {
	name, err := validation.NormalizeName(name)
	if err != nil {
		return Course{}, ErrNameRequired
	}

	c := Course{
		Name:        name,
		Description: description,
		Order:       order,
		Active:      true,
	}
	if err := db.Create(&c).Error; err != nil {
		return Course{}, err
	}
	return c, nil
}

// AddModule appends a module to a course.
func AddModule(db *gorm.DB, courseID uuid.UUID, name string, order int) (CourseModule, error) {
	name, err := validation.NormalizeName(name)
	if err != nil {
		return CourseModule{}, ErrNameRequired
	}
	if _, err := Get(db, courseID); err != nil {
		return CourseModule{}, err
	}

	m := CourseModule{CourseID: courseID, Name: name, Order: order}
	if err := db.Create(&m).Error; err != nil {
		return CourseModule{}, err
	}
	return m, nil
}

// AddChapter appends a chapter to a module.
func AddChapter(db *gorm.DB, moduleID uuid.UUID, name string, videoID *string, quizID *uuid.UUID, order int) (Chapter, error) {
	name, err := validation.NormalizeName(name)
	if err != nil {
		return Chapter{}, ErrNameRequired
	}

	var m CourseModule
	if err := db.First(&m, "id = ?", moduleID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return Chapter{}, ErrModuleNotFound
		}
		return Chapter{}, err
	}

	ch := Chapter{ModuleID: moduleID, Name: name, VideoID: videoID, QuizID: quizID, Order: order}
	if err := db.Create(&ch).Error; err != nil {
		return Chapter{}, err
	}
	return ch, nil
}

// CountChapters counts the chapters a course currently has. Progress
// percentages are always computed against this live count, never a snapshot,
// so curriculum edits change future attribution.
func CountChapters(db *gorm.DB, courseID uuid.UUID) (int64, error) {
	var count int64
	err := db.Model(&Chapter{}).
		Joins("JOIN course_modules ON course_modules.id = chapters.module_id").
		Where("course_modules.course_id = ?", courseID).
		Count(&count).Error
	return count, err
}

// ChapterInCourse reports whether a chapter belongs to the course via its module.
func ChapterInCourse(db *gorm.DB, chapterID, courseID uuid.UUID) (bool, error) {
	var count int64
	err := db.Model(&Chapter{}).
		Joins("JOIN course_modules ON course_modules.id = chapters.module_id").
		Where("chapters.id = ? AND course_modules.course_id = ?", chapterID, courseID).
		Count(&count).Error
	return count > 0, err
}

// GetChapters retrieves all chapters for a course ordered by module and chapter order.
func GetChapters(db *gorm.DB, courseID uuid.UUID) ([]Chapter, error) {
	var chapters []Chapter
	err := db.Model(&Chapter{}).
		Joins("JOIN course_modules ON course_modules.id = chapters.module_id").
		Where("course_modules.course_id = ?", courseID).
		Order("course_modules.\"order\" ASC, chapters.\"order\" ASC").
		Find(&chapters).Error
	return chapters, err
}
