package course

import (
	"github.com/tonimelisma/classroom-go/internal/classroom"
	"github.com/tonimelisma/classroom-go/internal/validate"
)

// Spec describes a course to create. Length limits are the API's.
type Spec struct {
	Name               string `json:"name" validate:"notblank,max=750"`
	Section            string `json:"section" validate:"max=2800"`
	Room               string `json:"room" validate:"max=650"`
	Description        string `json:"description" validate:"max=30000"`
	DescriptionHeading string `json:"descriptionHeading" validate:"max=3600"`
}

// Validate reports every invalid field at once.
func (s Spec) Validate() error {
	return validate.Struct(s)
}

func (s Spec) toNewCourse() classroom.NewCourse {
	return classroom.NewCourse{
		Name:               s.Name,
		Section:            s.Section,
		Room:               s.Room,
		Description:        s.Description,
		DescriptionHeading: s.DescriptionHeading,
	}
}
