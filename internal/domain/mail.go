package domain

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type CreateUserMailData struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type AllocationResultMailData struct {
	Name      string   `json:"name"`
	PlanName  string   `json:"planName"`
	GroupName string   `json:"groupName"`
	Teammates []string `json:"teammates"`
}
