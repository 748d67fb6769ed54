package identity

const (
	// DefaultLimit is the page size when the caller does not specify one
	DefaultLimit = 10
	// MaxLimit caps the page size
	MaxLimit = 100
)

// Page describes a validated slice of a filtered result set. OrderBy holds a
// real column name taken from a closed per-entity map; user input never
// reaches query construction directly.
type Page struct {
	Limit    int
	Offset   int
	OrderBy  string
	OrderDir string
}

// Paginated is a generic page of results. Total reflects the full filtered
// count independent of limit and offset.
type Paginated[T any] struct {
	Total int64 `json:"total"`
	Items []T   `json:"items"`
}

// Closed order-by column maps per entity. Unknown keys are rejected at the
// boundary with a validation error.
var (
	userOrderColumns = map[string]string{
		"id":         "id",
		"last_login": "last_login",
		"created":    "created",
	}
	groupOrderColumns = map[string]string{
		"id":      "id",
		"name":    "name",
		"created": "created",
	}
	permissionOrderColumns = map[string]string{
		"id":      "id",
		"name":    "name",
		"created": "created",
	}
)

// NewPage validates and normalizes raw paging input against the given
// order-by column map. The limit is clamped to [1, MaxLimit] with a default
// of DefaultLimit; negative offsets are rejected.
func NewPage(limit, offset int, orderBy, orderDir string, columns map[string]string) (Page, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return Page{}, Errorf(CodeInvalid, "limit must be between 1 and %d", MaxLimit)
	}
	if offset < 0 {
		return Page{}, NewError(CodeInvalid, "offset must not be negative")
	}

	if orderBy == "" {
		orderBy = "id"
	}
	column, ok := columns[orderBy]
	if !ok {
		return Page{}, Errorf(CodeInvalid, "invalid order_by column: %s", orderBy)
	}

	switch orderDir {
	case "":
		orderDir = "asc"
	case "asc", "desc":
	default:
		return Page{}, Errorf(CodeInvalid, "invalid order_dir: %s (must be asc or desc)", orderDir)
	}

	return Page{Limit: limit, Offset: offset, OrderBy: column, OrderDir: orderDir}, nil
}

// NewUserPage validates paging input against the user order columns
func NewUserPage(limit, offset int, orderBy, orderDir string) (Page, error) {
	return NewPage(limit, offset, orderBy, orderDir, userOrderColumns)
}

// NewGroupPage validates paging input against the group order columns
func NewGroupPage(limit, offset int, orderBy, orderDir string) (Page, error) {
	return NewPage(limit, offset, orderBy, orderDir, groupOrderColumns)
}

// NewPermissionPage validates paging input against the permission order columns
func NewPermissionPage(limit, offset int, orderBy, orderDir string) (Page, error) {
	return NewPage(limit, offset, orderBy, orderDir, permissionOrderColumns)
}
