package rbac

// Static permission table. This is configuration compiled into the binary,
// not persisted state: the role set is closed and changes ship as releases.
//
// Only admin and md may view another user's data. Mutation rights always
// follow the acting user's role, never the impersonated target's.

var fullRights = ModuleRights{CanCreate: true, CanEdit: true, CanDelete: true}

var permissionTable = map[Role]RolePermission{
	RoleAdmin: {
		CanImpersonate: true,
		ModuleRights: map[string]ModuleRights{
			ModuleBOQ:       fullRights,
			ModuleClients:   fullRights,
			ModuleInventory: fullRights,
			ModuleDocuments: fullRights,
			ModuleInvoices:  fullRights,
		},
	},
	RoleMD: {
		CanImpersonate: true,
		ModuleRights: map[string]ModuleRights{
			ModuleBOQ:       fullRights,
			ModuleClients:   fullRights,
			ModuleInventory: fullRights,
			ModuleDocuments: fullRights,
			ModuleInvoices:  fullRights,
		},
	},
	RoleDesign: {
		ModuleRights: map[string]ModuleRights{
			ModuleBOQ:       {CanCreate: true, CanEdit: true},
			ModuleDocuments: {CanCreate: true, CanEdit: true},
		},
	},
	RoleClientManager: {
		ModuleRights: map[string]ModuleRights{
			ModuleClients:   fullRights,
			ModuleDocuments: {CanCreate: true, CanEdit: true},
		},
	},
	RoleStore: {
		ModuleRights: map[string]ModuleRights{
			ModuleInventory: fullRights,
			ModuleDocuments: {CanCreate: true},
		},
	},
	RoleAccounts: {
		ModuleRights: map[string]ModuleRights{
			ModuleInvoices:  fullRights,
			ModuleDocuments: {CanCreate: true},
		},
	},
	RoleSite: {
		ModuleRights: map[string]ModuleRights{
			ModuleInventory: {CanCreate: true},
			ModuleDocuments: {CanCreate: true},
		},
	},
	RoleClient: {
		ModuleRights: map[string]ModuleRights{},
	},
}

// PermissionsFor resolves the permission set of a role. Unknown or malformed
// roles resolve to an all-rights-denied RolePermission, never elevated access.
func PermissionsFor(role Role) RolePermission {
	entry, ok := permissionTable[NormalizeRole(string(role))]
	if !ok {
		return RolePermission{ModuleRights: map[string]ModuleRights{}}
	}
	rights := make(map[string]ModuleRights, len(entry.ModuleRights))
	for module, r := range entry.ModuleRights {
		rights[module] = r
	}
	return RolePermission{CanImpersonate: entry.CanImpersonate, ModuleRights: rights}
}

// AllowedActions resolves the mutation rights of a role inside one module.
// Unknown roles and unknown modules both yield the zero value.
func AllowedActions(role Role, module string) ModuleRights {
	entry, ok := permissionTable[NormalizeRole(string(role))]
	if !ok {
		return ModuleRights{}
	}
	return entry.ModuleRights[module]
}

// CanImpersonate reports whether the role may select another user's data
// for viewing.
func CanImpersonate(role Role) bool {
	return PermissionsFor(role).CanImpersonate
}
