package provision

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/xraph/charter/permission"
	"github.com/xraph/charter/role"
)

// Plan is the validated, ordered result of compiling a Config. Building a
// plan performs no writes, so a malformed config never reaches the store.
type Plan struct {
	Roles       []RolePlan
	Permissions []PermissionPlan
}

// RolePlan is one role and the names of the permissions it bundles.
type RolePlan struct {
	Name        string
	DisplayName string
	Description string
	Permissions []string
}

// PermissionPlan is one permission to materialise.
type PermissionPlan struct {
	Name        string
	DisplayName string
	Description string
	Action      string
	Resource    string
}

var title = cases.Title(language.English)

// displayName turns "super_admin" into "Super Admin".
func displayName(s string) string {
	return title.String(strings.ReplaceAll(s, "_", " "))
}

// Compile validates the config and expands it into a deterministic plan.
// The bootstrap roles are always included.
func (c *Config) Compile() (*Plan, error) {
	actions := c.actions()
	for letter, action := range actions {
		if strings.TrimSpace(letter) == "" || strings.TrimSpace(action) == "" {
			return nil, fmt.Errorf("%w: empty action map entry %q=%q", ErrInvalidConfig, letter, action)
		}
	}

	roles := make(map[string]*RolePlan)
	for _, def := range role.Bootstrap() {
		roles[def.Name] = &RolePlan{Name: def.Name, DisplayName: def.DisplayName, Description: def.Description}
	}

	perms := make(map[string]PermissionPlan)
	for roleName, modules := range c.Roles {
		roleName = strings.TrimSpace(roleName)
		if roleName == "" {
			return nil, fmt.Errorf("%w: empty role name", ErrInvalidConfig)
		}
		rp, ok := roles[roleName]
		if !ok {
			dn := displayName(roleName)
			rp = &RolePlan{Name: roleName, DisplayName: dn, Description: dn}
			roles[roleName] = rp
		}

		for module, letters := range modules {
			module = strings.TrimSpace(module)
			if module == "" {
				return nil, fmt.Errorf("%w: role %q has an empty module name", ErrInvalidConfig, roleName)
			}
			for _, letter := range strings.Split(letters, ",") {
				letter = strings.TrimSpace(letter)
				if letter == "" {
					continue
				}
				action, ok := actions[letter]
				if !ok {
					return nil, fmt.Errorf("%w: %q (role %q, module %q)", ErrUnknownAction, letter, roleName, module)
				}
				name := permission.NameFor(action, module)
				if _, seen := perms[name]; !seen {
					dn := displayName(action) + " " + displayName(module)
					perms[name] = PermissionPlan{
						Name:        name,
						DisplayName: dn,
						Description: dn,
						Action:      action,
						Resource:    module,
					}
				}
				if !slices.Contains(rp.Permissions, name) {
					rp.Permissions = append(rp.Permissions, name)
				}
			}
		}
	}

	plan := &Plan{
		Roles:       make([]RolePlan, 0, len(roles)),
		Permissions: make([]PermissionPlan, 0, len(perms)),
	}
	for _, rp := range roles {
		slices.Sort(rp.Permissions)
		plan.Roles = append(plan.Roles, *rp)
	}
	slices.SortFunc(plan.Roles, func(a, b RolePlan) int { return strings.Compare(a.Name, b.Name) })
	for _, pp := range perms {
		plan.Permissions = append(plan.Permissions, pp)
	}
	slices.SortFunc(plan.Permissions, func(a, b PermissionPlan) int { return strings.Compare(a.Name, b.Name) })
	return plan, nil
}
