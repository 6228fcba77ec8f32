package types

// RecordType is a remote record type paired with the title of its compact
// layout.
type RecordType struct {
	ID                 string `json:"id"`
	ObjectName         string `json:"objectName"`
	DeveloperName      string `json:"developerName"`
	Label              string `json:"label"`
	CompactLayoutTitle string `json:"compactLayoutTitle"`
}

// CompositeLayoutResponse is the answer to MetadataClient.DescribeLayouts:
// one layout body per requested record type.
type CompositeLayoutResponse struct {
	Layouts []LayoutDescription `json:"layouts"`
}

// LayoutDescription is the edit layout of one record type.
type LayoutDescription struct {
	ID           string               `json:"id"`
	RecordTypeID string               `json:"recordTypeId"`
	Sections     []SectionDescription `json:"sections"`
	Fields       []FieldDescription   `json:"fields"`
}

// SectionDescription is one section of a layout with its items in display
// order.
type SectionDescription struct {
	ID         string            `json:"id"`
	Heading    string            `json:"heading"`
	Columns    int               `json:"columns"`
	UseHeading bool              `json:"useHeading"`
	Items      []ItemDescription `json:"items"`
}

// ItemDescription places a field in a section.
type ItemDescription struct {
	FieldName string `json:"fieldName"`
	Label     string `json:"label"`
	Required  bool   `json:"required"`
	Editable  bool   `json:"editable"`
}

// FieldDescription defines a field referenced by a layout. Editable is set
// when any layout item placing the field can be edited on create or update.
type FieldDescription struct {
	Name           string           `json:"name"`
	Label          string           `json:"label"`
	Type           string           `json:"type"`
	Editable       bool             `json:"editable"`
	PicklistValues []PicklistOption `json:"picklistValues,omitempty"`
}

// PicklistOption is one allowed value of a picklist field.
type PicklistOption struct {
	Value     string `json:"value"`
	Label     string `json:"label"`
	IsDefault bool   `json:"isDefault"`
	Active    bool   `json:"active"`
}

// LocalizationEntry is one translated label.
type LocalizationEntry struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Language string `json:"language"`
}

// LayoutDetail is a display-ready layout assembled from cached rows.
type LayoutDetail struct {
	ID       string          `json:"id"`
	Sections []SectionDetail `json:"sections"`
}

// SectionDetail is one section of a LayoutDetail. Data is never nil.
type SectionDetail struct {
	ID      string            `json:"id"`
	Title   string            `json:"title"`
	Columns int64             `json:"columns"`
	Data    []FieldDescriptor `json:"data"`
}

// FieldDescriptor is a field as rendered in a layout section.
type FieldDescriptor struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}
