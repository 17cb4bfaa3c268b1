package instance

import "github.com/kicksnairobi/footwear-backend/pkg/env"

// GetID identifies the running process in logs. Heroku-style DYNO names win
// over WORKER_ID.
func GetID() string {
	return env.First("local", "DYNO", "WORKER_ID")
}
