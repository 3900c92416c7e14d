package persistence

import "errors"

var (
	ErrGraphNotFound = errors.New("graph not found")
	ErrRunNotFound   = errors.New("run not found")
)

func IsGraphNotFound(err error) bool {
	return errors.Is(err, ErrGraphNotFound)
}

func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}
