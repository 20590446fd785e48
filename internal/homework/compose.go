package homework

import "strings"

// Compose builds the notification text for a changed item. It never fails: a status
// outside the known set yields a diagnostic segment and is returned as unknown so the
// caller can log it.
func Compose(item Item) (text string, unknown Status) {
	var parts []string
	if lesson := item.String(KeyLessonName); lesson != "" {
		parts = append(parts, "Изменился статус проверки работы - "+lesson+".")
	}
	if status := item.Status(); status != "" {
		if sentence, ok := status.Sentence(); ok {
			parts = append(parts, sentence)
		} else {
			parts = append(parts, "Отсутствует значение у ключа "+KeyStatus+": "+string(status)+".")
			unknown = status
		}
	}
	if comment := item.String(KeyReviewerComment); comment != "" {
		parts = append(parts, "Комментарий ревьюера: "+comment+".")
	}
	return strings.Join(parts, " "), unknown
}
