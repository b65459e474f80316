package namespace

import "errors"

var (
	ErrNotFound     = errors.New("item not found")
	ErrNotFolder    = errors.New("parent is not a folder")
	ErrCycle        = errors.New("folder cannot be moved into itself or its descendants")
	ErrInvalidTitle = errors.New("title must not be blank")
	ErrNotSibling   = errors.New("items do not share a parent")
	ErrDuplicate    = errors.New("an item with the same name and size already exists in this folder")
)
