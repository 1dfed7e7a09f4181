package services

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"compliance_flow_app_go/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Capabilities checked by the workflow. A policy entry ending in ":*" grants
// every capability with that prefix, "*" grants everything.
const (
	CapCaseCreate          = "case:create"
	CapCaseView            = "case:view"
	CapCaseDelete          = "case:delete"
	CapStageCreate         = "stage:create"
	CapStageActAny         = "stage:act_any" // act on any stage regardless of assignment
	CapExpiryManage        = "expiry:manage"
	CapExpiryReactivate    = "expiry:reactivate"
	CapRenewalConfigManage = "renewal_config:manage"
	CapAuditView           = "audit:view"
)

// Actions that an assignee may perform on their own stage record
const (
	ActionStageView       = "stage:view"
	ActionStageSubmit     = "stage:submit"
	ActionStageUpload     = "stage:upload"
	ActionStageDeleteFile = "stage:delete_file"
)

var assigneeActions = map[string]bool{
	ActionStageView:       true,
	ActionStageSubmit:     true,
	ActionStageUpload:     true,
	ActionStageDeleteFile: true,
}

// ReviewCapability is the capability that finalizes a stage of kind
func ReviewCapability(kind models.StageKind) string {
	return "stage:review:" + string(kind)
}

// CapabilitySet is a set of granted capability patterns
type CapabilitySet map[string]bool

// Has returns true if the set contains cap exactly or through a wildcard
func (cs CapabilitySet) Has(cap string) bool {
	if cs[cap] {
		return true
	}
	for pattern := range cs {
		if matchWildcard(pattern, cap) {
			return true
		}
	}
	return false
}

func matchWildcard(pattern, cap string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.HasSuffix(pattern, ":*") {
		return false
	}
	return strings.HasPrefix(cap, pattern[:len(pattern)-1])
}

// DefaultRolePolicy maps each known role to its capabilities.
// Only admin may review plan, application and renewal stages; the stability
// manager may additionally review stability stages.
func DefaultRolePolicy() map[string][]string {
	return map[string][]string{
		models.RoleAdmin: {"case:*", "stage:*", "expiry:*", "renewal_config:*", "audit:*"},
		models.RoleCompliance: {
			CapCaseCreate, CapCaseView, CapCaseDelete, CapStageCreate,
			"expiry:*", CapAuditView,
		},
		models.RoleStabilityManager:   {ReviewCapability(models.StageKindStability), CapCaseView},
		models.RolePlanManager:        {CapCaseView},
		models.RoleApplicationManager: {CapCaseView},
		models.RoleRenewalManager:     {CapCaseView},
	}
}

type policyFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// LoadRolePolicy reads a YAML policy file of the form `roles: {role: [caps]}`.
// An empty path yields the default policy.
func LoadRolePolicy(path string) (map[string][]string, error) {
	if path == "" {
		return DefaultRolePolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading capability policy %s: %w", path, err)
	}
	var p policyFile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing capability policy %s: %w", path, err)
	}
	if len(p.Roles) == 0 {
		return nil, fmt.Errorf("capability policy %s defines no roles", path)
	}
	return p.Roles, nil
}

var (
	policyMu   sync.RWMutex
	rolePolicy = DefaultRolePolicy()
)

// SetRolePolicy replaces the active role policy
func SetRolePolicy(policy map[string][]string) {
	policyMu.Lock()
	defer policyMu.Unlock()
	rolePolicy = policy
}

// CapabilitiesForRoles returns the union of capabilities of roles
func CapabilitiesForRoles(roles []string) CapabilitySet {
	policyMu.RLock()
	defer policyMu.RUnlock()

	caps := make(CapabilitySet)
	for _, role := range roles {
		for _, c := range rolePolicy[role] {
			caps[c] = true
		}
	}
	return caps
}

// Caller is the authenticated actor of a request with its resolved roles
type Caller struct {
	UserID       string
	Name         string
	Roles        []string
	Capabilities CapabilitySet
}

// HasCapability reports whether the caller holds cap
func (c *Caller) HasCapability(cap string) bool {
	return c != nil && c.Capabilities.Has(cap)
}

// NewCaller builds a caller from a user with loaded roles
func NewCaller(user *models.User) *Caller {
	roles := user.RoleNames()
	return &Caller{
		UserID:       user.ID,
		Name:         user.Name,
		Roles:        roles,
		Capabilities: CapabilitiesForRoles(roles),
	}
}

// ResolveCaller loads the user and its roles fresh from the database.
// Roles are not cached so revocations apply on the next request.
func ResolveCaller(db *gorm.DB, userID string) (*Caller, error) {
	var user models.User
	err := db.Preload("Roles").First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("user %s not found", userID)
		}
		return nil, InternalError("failed to load caller", err)
	}
	if !user.IsActive {
		return nil, ForbiddenError("user %s is inactive", userID)
	}
	return NewCaller(&user), nil
}

// RoleAuthorizer decides whether a caller may perform an action
type RoleAuthorizer struct{}

// NewRoleAuthorizer creates a RoleAuthorizer
func NewRoleAuthorizer() *RoleAuthorizer {
	return &RoleAuthorizer{}
}

// IsAuthorized returns true when the caller holds the action capability, or
// when the action is an assignee action on a resource the caller owns.
// It never fails; callers map false to a forbidden error.
func (a *RoleAuthorizer) IsAuthorized(caller *Caller, action string, resourceOwnerID string) bool {
	if caller == nil {
		return false
	}
	if caller.HasCapability(action) {
		return true
	}
	if assigneeActions[action] {
		if caller.HasCapability(CapStageActAny) {
			return true
		}
		return resourceOwnerID != "" && caller.UserID == resourceOwnerID
	}
	return false
}

// UserHasRole verifies against the database that userID holds roleName
func UserHasRole(db *gorm.DB, userID, roleName string) (bool, error) {
	var count int64
	err := db.Table("user_roles").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Joins("JOIN users ON users.id = user_roles.user_id").
		Where("user_roles.user_id = ? AND roles.name = ? AND users.is_active = ? AND users.deleted_at IS NULL", userID, roleName, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SeedRoles creates the known roles if they do not exist
func SeedRoles(db *gorm.DB) error {
	for _, name := range models.KnownRoles() {
		role := models.Role{Name: name}
		if err := db.Where(models.Role{Name: name}).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("failed to seed role %s: %w", name, err)
		}
	}
	return nil
}

// AssignRoles attaches the named roles to a user
func AssignRoles(db *gorm.DB, user *models.User, roleNames ...string) error {
	var roles []models.Role
	if err := db.Where("name IN ?", roleNames).Find(&roles).Error; err != nil {
		return err
	}
	if len(roles) != len(roleNames) {
		return ValidationError("unknown role in %v", roleNames)
	}
	return db.Model(user).Association("Roles").Append(roles)
}
