package authn

type Permission string

const (
	PermEmployeeRead   Permission = "employee.read"
	PermEmployeeWrite  Permission = "employee.write"
	PermPayrollRead    Permission = "payroll.read"
	PermPayrollWrite   Permission = "payroll.write"
	PermPayrollApprove Permission = "payroll.approve"
	PermInvoiceRead    Permission = "invoice.read"
	PermInvoiceWrite   Permission = "invoice.write"
	PermGSTRead        Permission = "gst.read"
	PermGSTFile        Permission = "gst.file"
	PermRolesManage    Permission = "roles.manage"
	PermAuditRead      Permission = "audit.read"
	PermConfigRead     Permission = "config.read"
	PermConfigWrite    Permission = "config.write"
	PermApprovalManage Permission = "approval.manage"
)

const (
	RoleOwner      = "owner"
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleHR         = "hr"
	RoleAccountant = "accountant"
	RoleMember     = "member"
)

var Roles = []string{RoleOwner, RoleAdmin, RoleManager, RoleHR, RoleAccountant, RoleMember}

func KnownRole(role string) bool {
	for _, known := range Roles {
		if known == role {
			return true
		}
	}
	return false
}

// HasPermission reports whether a tenant role grants perm. Super-admin
// bypass is applied by RequirePermission, not here.
func HasPermission(role string, perm Permission) bool {
	switch role {
	case RoleOwner, RoleAdmin:
		return true
	case RoleManager:
		return perm != PermRolesManage
	case RoleHR:
		switch perm {
		case PermEmployeeRead, PermEmployeeWrite, PermPayrollRead, PermPayrollWrite:
			return true
		default:
			return false
		}
	case RoleAccountant:
		switch perm {
		case PermInvoiceRead, PermInvoiceWrite, PermGSTRead, PermGSTFile:
			return true
		default:
			return false
		}
	case RoleMember:
		return perm == PermEmployeeRead || perm == PermInvoiceRead
	default:
		return false
	}
}
