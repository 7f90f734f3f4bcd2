package role

// Category tags the kind of role an invite link grants
type Category string

const (
	CategoryModerator   Category = "moderator"
	CategoryContributor Category = "contributor"
	CategoryMentor      Category = "mentor"
	CategoryJury        Category = "jury"
)

// Definition describes how a category is configured and which server role it maps to
type Definition struct {
	Category Category
	RoleName string // Name of the role on the server, resolved at grant time
	EnvVar   string // Environment variable holding the invite token
}

// DefaultDefinitions returns the built-in categories in their declared order
func DefaultDefinitions() []Definition {
	return []Definition{
		{Category: CategoryModerator, RoleName: "Moderator", EnvVar: "INVITE_MODERATOR"},
		{Category: CategoryContributor, RoleName: "Contributor", EnvVar: "INVITE_CONTRIBUTOR"},
		{Category: CategoryMentor, RoleName: "Mentor", EnvVar: "INVITE_MENTOR"},
		{Category: CategoryJury, RoleName: "Jury", EnvVar: "INVITE_JURY"},
	}
}
