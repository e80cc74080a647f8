package celltree

// CellType distinguishes grouping cells from rendering leaves.
type CellType string

// Cell types.
const (
	TypeCollection CellType = "COLLECTION"
	TypeText       CellType = "TEXT"
)

// Layout is the arrangement of a collection's children.
type Layout string

// Layouts.
const (
	LayoutHorizontal Layout = "HORIZONTAL"
	LayoutVertical   Layout = "VERTICAL"
)

// Common cell properties.
var (
	TypeKey           = NewEnumKey("type", TypeCollection, []CellType{TypeCollection, TypeText})
	LayoutKey         = NewEnumKey("layout", LayoutHorizontal, []Layout{LayoutHorizontal, LayoutVertical})
	IndentChildrenKey = NewBoolKey("indent-children", false)
	OnNewLineKey      = NewBoolKey("on-new-line", false)
	NoSpaceKey        = NewBoolKey("no-space", false)

	TextColorKey            = NewStringKey("text-color", "", Inherited())
	PlaceholderTextColorKey = NewStringKey("placeholder-text-color", "lightGray", Inherited())
	BackgroundColorKey      = NewStringKey("background-color", "")

	// TextReplacementKey holds typed text that has not yet been turned into
	// a model change. It is shown instead of TextKey.
	TextReplacementKey = NewStringKey("text-replacement", "")
	// TabTargetKey marks cells that receive the caret on Tab navigation.
	TabTargetKey = NewBoolKey("tab-target", false)
	SelectableKey = NewBoolKey("selectable", false)
	// CodeCompletionTextKey overrides the completion text of a template.
	// An empty value hides the entry.
	CodeCompletionTextKey = NewStringKey("code-completion-text", "")
	ForceShownKey         = NewBoolKey("force-shown", false)

	TextKey            = NewStringKey("text", "")
	PlaceholderTextKey = NewStringKey("placeholderText", "")

	// ReferencesKey lists the logical references that resolve to a cell.
	ReferencesKey = NewReferencesKey("cell-references")
)
