package audit

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionView         Action = "view"
	ActionExport       Action = "export"
	ActionImport       Action = "import"
	ActionLogin        Action = "login"
	ActionLogout       Action = "logout"
	ActionLoginFailed  Action = "login_failed"
	ActionAccessDenied Action = "access_denied"
	ActionPublish      Action = "publish"
	ActionUnpublish    Action = "unpublish"
	ActionUpload       Action = "upload"
	ActionDownload     Action = "download"
	ActionBackup       Action = "backup"
	ActionRestore      Action = "restore"
)

type ResourceType string

const (
	ResourceUser      ResourceType = "user"
	ResourceContent   ResourceType = "content"
	ResourcePortfolio ResourceType = "portfolio"
	ResourceGallery   ResourceType = "gallery"
	ResourceImage     ResourceType = "image"
	ResourceSettings  ResourceType = "settings"
	ResourcePage      ResourceType = "page"
	ResourceBlogPost  ResourceType = "blog_post"
	ResourceMediaFile ResourceType = "media_file"
	ResourceBackup    ResourceType = "backup"
	ResourceRoute     ResourceType = "route"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type Category string

const (
	CategorySecurity   Category = "security"
	CategoryContent    Category = "content"
	CategorySystem     Category = "system"
	CategoryUserAction Category = "user_action"
)

// Changes captures optional before/after snapshots for mutation entries.
type Changes struct {
	Before        map[string]any `json:"before,omitempty"`
	After         map[string]any `json:"after,omitempty"`
	FieldsChanged []string       `json:"fieldsChanged,omitempty"`
}

// Entry is one immutable audit record. ID and Timestamp are assigned by the
// recorder at submission time and must be left zero by callers.
type Entry struct {
	ID           string            `json:"id"`
	ActorID      string            `json:"actorId"`
	ActorEmail   string            `json:"actorEmail"`
	ActorRole    string            `json:"actorRole"`
	Action       Action            `json:"action"`
	ResourceType ResourceType      `json:"resourceType"`
	ResourceID   string            `json:"resourceId,omitempty"`
	ResourceName string            `json:"resourceName,omitempty"`
	Description  string            `json:"description"`
	Severity     Severity          `json:"severity"`
	Category     Category          `json:"category"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	IP           string            `json:"ipAddress,omitempty"`
	UserAgent    string            `json:"userAgent,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Changes      *Changes          `json:"changes,omitempty"`
}

// Validate checks the fields callers are required to fill.
func (e *Entry) Validate() error {
	switch {
	case e.ActorID == "":
		return errors.New("audit: entry missing actor id")
	case e.ActorEmail == "":
		return errors.New("audit: entry missing actor email")
	case e.Action == "":
		return errors.New("audit: entry missing action")
	case e.ResourceType == "":
		return errors.New("audit: entry missing resource type")
	}
	return nil
}

// stamp assigns the recorder-owned fields and fills defaults.
func (e *Entry) stamp(now time.Time) {
	e.ID = uuid.NewString()
	e.Timestamp = now.UTC()
	if e.Severity == "" {
		e.Severity = SeverityLow
	}
	if e.Category == "" {
		e.Category = CategoryUserAction
	}
}

// matches reports whether the entry passes every set filter.
func (e *Entry) matches(f Filters) bool {
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.ResourceType != "" && e.ResourceType != f.ResourceType {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.IP != "" && e.IP != f.IP {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	if f.SearchTerm != "" {
		term := strings.ToLower(f.SearchTerm)
		if !strings.Contains(strings.ToLower(e.Description), term) &&
			!strings.Contains(strings.ToLower(e.ActorEmail), term) &&
			!strings.Contains(strings.ToLower(e.ResourceName), term) {
			return false
		}
	}
	return true
}

// Filters narrows a [Store.Query]. Zero-valued fields are ignored.
type Filters struct {
	ActorID      string
	Action       Action
	ResourceType ResourceType
	Severity     Severity
	Category     Category
	IP           string
	From         time.Time
	To           time.Time
	SearchTerm   string
}

// Page is one page of query results, newest-first.
type Page struct {
	Logs       []Entry `json:"logs"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalPages int     `json:"totalPages"`
}

// ActorCount ranks an actor by number of recorded entries.
type ActorCount struct {
	ActorID    string `json:"actorId"`
	ActorEmail string `json:"actorEmail"`
	Count      int    `json:"count"`
}

// Stats aggregates the stored trail.
type Stats struct {
	TotalLogs      int                  `json:"totalLogs"`
	ByAction       map[Action]int       `json:"logsByAction"`
	ByResourceType map[ResourceType]int `json:"logsByResourceType"`
	BySeverity     map[Severity]int     `json:"logsBySeverity"`
	RecentActivity []Entry              `json:"recentActivity"`
	TopActors      []ActorCount         `json:"topActors"`
}

/*==========================================================================
  Helper constructors for the security-critical entries the engine records.
  ==========================================================================*/

func LoginEntry(actorID, actorEmail, actorRole, ip, userAgent string) Entry {
	return Entry{
		ActorID:      actorID,
		ActorEmail:   actorEmail,
		ActorRole:    actorRole,
		Action:       ActionLogin,
		ResourceType: ResourceUser,
		ResourceID:   actorID,
		Description:  "user " + actorEmail + " signed in",
		Severity:     SeverityLow,
		Category:     CategorySecurity,
		IP:           ip,
		UserAgent:    userAgent,
	}
}

func LogoutEntry(actorID, actorEmail, actorRole, ip, userAgent string) Entry {
	return Entry{
		ActorID:      actorID,
		ActorEmail:   actorEmail,
		ActorRole:    actorRole,
		Action:       ActionLogout,
		ResourceType: ResourceUser,
		ResourceID:   actorID,
		Description:  "user " + actorEmail + " signed out",
		Severity:     SeverityLow,
		Category:     CategorySecurity,
		IP:           ip,
		UserAgent:    userAgent,
	}
}

// FailedLoginEntry records a failed verification attempt. The actor is the
// claimed email; no account id is known at that point.
func FailedLoginEntry(email, ip, userAgent string) Entry {
	return Entry{
		ActorID:      "unknown",
		ActorEmail:   email,
		ActorRole:    "guest",
		Action:       ActionLoginFailed,
		ResourceType: ResourceUser,
		Description:  "failed sign-in attempt for " + email,
		Severity:     SeverityMedium,
		Category:     CategorySecurity,
		IP:           ip,
		UserAgent:    userAgent,
	}
}

// AccessDeniedEntry records an authorization-gate denial.
func AccessDeniedEntry(actorID, actorEmail, actorRole, path, requiredRole, ip, userAgent string) Entry {
	return Entry{
		ActorID:      actorID,
		ActorEmail:   actorEmail,
		ActorRole:    actorRole,
		Action:       ActionAccessDenied,
		ResourceType: ResourceRoute,
		ResourceName: path,
		Description:  "access to " + path + " denied: requires " + requiredRole,
		Severity:     SeverityMedium,
		Category:     CategorySecurity,
		Metadata:     map[string]string{"requiredRole": requiredRole},
		IP:           ip,
		UserAgent:    userAgent,
	}
}
