package rbac

// Default authoring policy.
var RolePermissions = map[string][]string{
	"teacher": {
		"session:create",
		"session:view",
		"session:command",
		"session:close",
		"draft:list",
		"draft:resume",
		"draft:delete",
	},
	"auditor": {
		"events:view",
	},
	"admin": {
		"*",
	},
}
