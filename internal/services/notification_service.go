package services

import (
	"fmt"
	"strings"

	"github.com/containrrr/shoutrrr"

	"github.com/policygraph/policygraph/internal/logger"
)

// NotificationService pushes operational alerts to external channels via
// shoutrrr URLs (discord, slack, smtp, ...). Sends are fire-and-forget:
// losing an alert must never fail the storage operation that raised it.
type NotificationService struct {
	urls []string
}

// NewNotificationService parses a comma-separated list of shoutrrr URLs.
// An empty list yields a no-op service.
func NewNotificationService(rawURLs string) *NotificationService {
	var urls []string
	for _, u := range strings.Split(rawURLs, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return &NotificationService{urls: urls}
}

// NotifyCorruption alerts operators that the store failed an integrity
// check and should be restored from a backup export.
func (s *NotificationService) NotifyCorruption(err error) {
	s.send(fmt.Sprintf("PolicyGraph storage integrity failure: %v. Restore from the latest export.", err))
}

// NotifyLossyImport alerts operators that an import rejected records.
func (s *NotificationService) NotifyLossyImport(summary *ImportSummary) {
	if summary == nil || summary.Rejected == 0 {
		return
	}
	s.send(fmt.Sprintf("PolicyGraph import finished: %d accepted, %d rejected.", summary.Accepted, summary.Rejected))
}

func (s *NotificationService) send(message string) {
	for _, url := range s.urls {
		go func(u string) {
			if err := shoutrrr.Send(u, message); err != nil {
				logger.Log().WithError(err).Warn("failed to send notification")
			}
		}(url)
	}
}
