package model

import "time"

// DocumentBox is the logical container that owns every Folder, File, and
// Link sharing its Scope. Access control for a box is delegated to an
// upstream proxy; this core only reads/writes by Scope.
type DocumentBox struct {
	Scope     string
	CreatedAt time.Time
}
