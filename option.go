package overseer

import (
	"log/slog"
	"net/http"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/viant/overseer/model/approval"
	gateway "github.com/viant/overseer/service/approval"
	"github.com/viant/overseer/service/dao/blob"
	"github.com/viant/overseer/service/messaging"
	"github.com/viant/overseer/service/notify"
	"github.com/viant/overseer/service/notify/email"
	"github.com/viant/overseer/service/notify/tracker"
	"github.com/viant/overseer/service/secret"
	"github.com/viant/overseer/tracing"
)

// Option customises a Service.
type Option func(s *Service)

// WithRepository overrides the store driver with repo.
func WithRepository(repo blob.Repository) Option {
	return func(s *Service) { s.repo = repo }
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPrompter enables the CLI response path.
func WithPrompter(prompter gateway.Prompter) Option {
	return func(s *Service) { s.prompter = prompter }
}

// WithTaskTracker supplies the task tracker behind the linear channel.
func WithTaskTracker(taskTracker tracker.TaskTracker) Option {
	return func(s *Service) { s.taskTracker = taskTracker }
}

// WithSendMail replaces smtp.SendMail for the email channel.
func WithSendMail(send email.SendFunc) Option {
	return func(s *Service) { s.sendMail = send }
}

// WithHTTPClient sets the client used by the slack and webhook channels.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) { s.httpClient = client }
}

// WithNotifiers registers extra channel notifiers; they replace a built-in
// notifier of the same channel.
func WithNotifiers(notifiers ...notify.Notifier) Option {
	return func(s *Service) { s.notifiers = append(s.notifiers, notifiers...) }
}

// WithOutboxQueue sets the queue used by the notification outbox.
func WithOutboxQueue(queue messaging.Queue[notify.Delivery]) Option {
	return func(s *Service) { s.outboxQueue = queue }
}

// WithSecretResolver sets the resolver of channel credentials.
func WithSecretResolver(resolver *secret.Resolver) Option {
	return func(s *Service) { s.secrets = resolver }
}

// WithEvents shares an approval event hub.
func WithEvents(hub *messaging.Hub[approval.Event]) Option {
	return func(s *Service) { s.events = hub }
}

// WithTracing configures OpenTelemetry tracing. If outputFile is empty the
// stdout exporter is used. The first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		if err := tracing.Init(serviceName, serviceVersion, outputFile); err != nil {
			s.logger.Warn("tracing_init_failed", "error", err.Error())
		}
	}
}

// WithTracingExporter configures tracing with a custom SpanExporter.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		if err := tracing.InitWithExporter(serviceName, serviceVersion, exporter); err != nil {
			s.logger.Warn("tracing_init_failed", "error", err.Error())
		}
	}
}
