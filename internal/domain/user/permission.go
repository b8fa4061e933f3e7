package user

type Permission string

const (
	// Payroll runs
	PermissionPayrollView    Permission = "payroll.view"
	PermissionPayrollProcess Permission = "payroll.process"
	PermissionPayrollApprove Permission = "payroll.approve"
	PermissionPayrollPay     Permission = "payroll.pay"

	// Calculator
	PermissionPayrollCalculate Permission = "payroll.calculate"

	// Tax tables
	PermissionTaxTableView   Permission = "tax_table.view"
	PermissionTaxTableManage Permission = "tax_table.manage"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermissionPayrollCalculate,
		PermissionTaxTableView,
		PermissionTaxTableManage,
	},
	RoleOwner: {
		PermissionPayrollView,
		PermissionPayrollProcess,
		PermissionPayrollApprove,
		PermissionPayrollPay,
		PermissionPayrollCalculate,
		PermissionTaxTableView,
	},
	RoleManager: {
		// Manager prepares runs; approval and payment stay with the owner
		PermissionPayrollView,
		PermissionPayrollProcess,
		PermissionPayrollCalculate,
		PermissionTaxTableView,
	},
	RoleEmployee: {
		PermissionPayrollCalculate,
	},
	RolePending: {
		// Pending role has no permissions
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}
