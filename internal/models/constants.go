package models

const (
	StatusPending             = "pending"
	StatusConfirmed           = "confirmed"
	StatusProviderOnWay       = "provider_on_way"
	StatusInProgress          = "in_progress"
	StatusWorkCompleted       = "work_completed"
	StatusCompleted           = "completed"
	StatusCancelledByCustomer = "cancelled_by_customer"
	StatusCancelledByProvider = "cancelled_by_provider"
	StatusCancelledByAdmin    = "cancelled_by_admin"
)

const (
	RoleCustomer = "customer"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

const (
	// DefaultOtpLength количество цифр в коде подтверждения
	DefaultOtpLength = 6

	// DefaultOtpTTLMinutes срок действия кода подтверждения
	DefaultOtpTTLMinutes = 10

	// DefaultOtpMaxAttempts количество попыток ввода кода
	DefaultOtpMaxAttempts = 5

	// DefaultOtpRequestLimit количество повторных запросов кода в окне
	DefaultOtpRequestLimit = 3

	// DefaultOtpRequestWindow окно ограничения повторных запросов (секунды)
	DefaultOtpRequestWindow = 10 * 60

	// DefaultContactCacheTTL время жизни кэша контактов клиентов (секунды)
	DefaultContactCacheTTL = 60 * 60

	// DefaultMaxScheduleDays максимальный горизонт бронирования
	DefaultMaxScheduleDays = 90

	// WorkerQueueSize размер очереди воркера уведомлений
	WorkerQueueSize = 128
)
