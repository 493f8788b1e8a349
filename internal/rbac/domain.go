package rbac

import "strings"

// Role represents one of the fixed dashboard roles.
type Role string

// Closed set of roles recognised by the gateway. Anything else fails closed.
const (
	RoleAdmin         Role = "admin"
	RoleMD            Role = "md"
	RoleDesign        Role = "design"
	RoleClientManager Role = "client-manager"
	RoleStore         Role = "store"
	RoleAccounts      Role = "accounts"
	RoleSite          Role = "site"
	RoleClient        Role = "client"
)

// Dashboard modules gated by the permission table.
const (
	ModuleBOQ       = "boq"
	ModuleClients   = "clients"
	ModuleInventory = "inventory"
	ModuleDocuments = "documents"
	ModuleInvoices  = "invoices"
)

// ModuleRights holds the mutation rights a role has inside one module.
// Read access is implied for every authenticated role; only mutations differ.
type ModuleRights struct {
	CanCreate bool `json:"can_create"`
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

// RolePermission aggregates the cross-user viewing right and per-module
// mutation rights of a role.
type RolePermission struct {
	CanImpersonate bool
	ModuleRights   map[string]ModuleRights
}

// NormalizeRole canonicalises a role string received from the upstream API.
func NormalizeRole(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}

// Modules lists every module known to the permission table.
func Modules() []string {
	return []string{ModuleBOQ, ModuleClients, ModuleInventory, ModuleDocuments, ModuleInvoices}
}

// KnownModule reports whether the module name appears in the permission table.
func KnownModule(name string) bool {
	switch name {
	case ModuleBOQ, ModuleClients, ModuleInventory, ModuleDocuments, ModuleInvoices:
		return true
	}
	return false
}
