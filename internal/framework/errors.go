package framework

import "errors"

var (
	ErrFrameworkNotFound  = errors.New("framework not found")
	ErrInvalidCompetency  = errors.New("invalid competency")
	ErrCompetencyNotFound = errors.New("competency not found")
)
