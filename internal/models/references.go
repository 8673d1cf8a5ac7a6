package models

// ReferencesModel References model for related data
type ReferencesModel struct {
	Routes []RouteReference `json:"routes"`
}

// NewEmptyReferences creates a new empty References model with initialized empty slices
func NewEmptyReferences() ReferencesModel {
	return ReferencesModel{
		Routes: []RouteReference{},
	}
}
