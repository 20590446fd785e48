package homework

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyResult is returned when the API answers with an empty homework list.
var ErrEmptyResult = errors.New("Список работ пуст")

// ConfigError reports a required environment value that is not set.
type ConfigError struct {
	Variable string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("Отсутствует обязательная переменная окружения: %s", e.Variable)
}

// RequestError wraps a transport failure while calling the API.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("При запросе к эндпоинту возникла ошибка: %v", e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// ResponseCodeError reports a non-200 answer from the API.
type ResponseCodeError struct {
	Code     int
	Endpoint string
}

func (e *ResponseCodeError) Error() string {
	if e.Code == http.StatusNotFound {
		return fmt.Sprintf("Эндпоинт: %s недоступен. Код ответа API: %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("Эндпоинт: %s ответил с кодом: %d", e.Endpoint, e.Code)
}

// TypeError reports a payload value of the wrong JSON kind.
type TypeError struct {
	Expected string
	Actual   string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf(
		"Неправильный формат ответа эндпоинта, должен быть %s а пришел: %s",
		e.Expected, e.Actual,
	)
}

// MissingFieldError reports a required key absent from a payload or item.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("В ответе отсутствую обязательные поля: %s", e.Field)
}

// PersistenceError reports a database write that failed after retries.
type PersistenceError struct {
	HomeworkName string
	Err          error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("Не удалось сохранить работу %q в БД: %v", e.HomeworkName, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// SendError wraps a failed outbound message. It is logged, never escalated.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("При отправке сообщения возникла ошибка: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Kind returns a stable label for err, used in logs and metric labels.
func Kind(err error) string {
	var (
		cfgErr     *ConfigError
		reqErr     *RequestError
		codeErr    *ResponseCodeError
		typeErr    *TypeError
		missingErr *MissingFieldError
		persistErr *PersistenceError
		sendErr    *SendError
	)
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &cfgErr):
		return "config"
	case errors.As(err, &reqErr):
		return "request"
	case errors.As(err, &codeErr):
		return "response_code"
	case errors.As(err, &typeErr):
		return "type"
	case errors.As(err, &missingErr):
		return "missing_field"
	case errors.Is(err, ErrEmptyResult):
		return "empty_result"
	case errors.As(err, &persistErr):
		return "persistence"
	case errors.As(err, &sendErr):
		return "send"
	default:
		return "unknown"
	}
}
