package config

import "strconv"

type ConsoleConfig interface {
	GetHomePath() string
	GetNotificationBacklog() int
}

type Console struct{}

var _ ConsoleConfig = Console{}

// GetHomePath is where the application root redirects once menus are registered.
func (Console) GetHomePath() string {
	return GetEnv("HOME_PATH", "/user")
}

func (Console) GetNotificationBacklog() int {
	n, err := strconv.Atoi(GetEnv("NOTIFICATION_BACKLOG", "50"))
	if err != nil || n <= 0 {
		return 50
	}
	return n
}
