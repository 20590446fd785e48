package homework

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewBufferString(raw))
	dec.UseNumber()
	var out any
	require.NoError(t, dec.Decode(&out))
	return out
}

func TestValidate_ReturnsItems(t *testing.T) {
	t.Parallel()

	payload := decode(t, `{"homeworks":[{"status":"approved","homework_name":"hw1"}],"current_date":100}`)
	items, err := Validate(payload)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "hw1", items[0].Name())
	require.Equal(t, StatusApproved, items[0].Status())
}

func TestValidate_FirstViolationWins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, err error)
	}{
		{
			name: "list payload",
			raw:  `[{"homeworks":[]}]`,
			check: func(t *testing.T, err error) {
				var typeErr *TypeError
				require.ErrorAs(t, err, &typeErr)
				require.Equal(t, "object", typeErr.Expected)
				require.Equal(t, "array", typeErr.Actual)
			},
		},
		{
			name: "scalar payload",
			raw:  `"oops"`,
			check: func(t *testing.T, err error) {
				var typeErr *TypeError
				require.ErrorAs(t, err, &typeErr)
				require.Equal(t, "string", typeErr.Actual)
			},
		},
		{
			name: "missing homeworks beats empty cursor",
			raw:  `{"current_date":1}`,
			check: func(t *testing.T, err error) {
				var missing *MissingFieldError
				require.ErrorAs(t, err, &missing)
				require.Equal(t, KeyHomeworks, missing.Field)
			},
		},
		{
			name: "missing current_date even when homeworks is not a list",
			raw:  `{"homeworks":"nope"}`,
			check: func(t *testing.T, err error) {
				var missing *MissingFieldError
				require.ErrorAs(t, err, &missing)
				require.Equal(t, KeyCurrentDate, missing.Field)
			},
		},
		{
			name: "homeworks not a list",
			raw:  `{"homeworks":{"a":1},"current_date":1}`,
			check: func(t *testing.T, err error) {
				var typeErr *TypeError
				require.ErrorAs(t, err, &typeErr)
				require.Equal(t, "array", typeErr.Expected)
				require.Equal(t, "object", typeErr.Actual)
			},
		},
		{
			name: "empty list",
			raw:  `{"homeworks":[],"current_date":1}`,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrEmptyResult)
			},
		},
		{
			name: "element not an object",
			raw:  `{"homeworks":[1],"current_date":1}`,
			check: func(t *testing.T, err error) {
				var typeErr *TypeError
				require.ErrorAs(t, err, &typeErr)
				require.Equal(t, "number", typeErr.Actual)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			items, err := Validate(decode(t, tt.raw))
			require.Error(t, err)
			require.Nil(t, items)
			tt.check(t, err)
		})
	}
}

func TestValidate_EmptyWithoutCursorIsMissingField(t *testing.T) {
	t.Parallel()

	_, err := Validate(decode(t, `{"homeworks":[]}`))
	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, KeyCurrentDate, missing.Field)
}

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		item Item
		snap Snapshot
		want Verdict
	}{
		{
			name: "first seen",
			item: Item{KeyStatus: "approved", KeyHomeworkName: "hw1"},
			snap: Snapshot{},
			want: Changed,
		},
		{
			name: "same status",
			item: Item{KeyStatus: "reviewing", KeyHomeworkName: "hw1"},
			snap: Snapshot{"hw1": StatusReviewing},
			want: Unchanged,
		},
		{
			name: "status moved",
			item: Item{KeyStatus: "approved", KeyHomeworkName: "hw1"},
			snap: Snapshot{"hw1": StatusReviewing},
			want: Changed,
		},
		{
			name: "other item in snapshot",
			item: Item{KeyStatus: "reviewing", KeyHomeworkName: "hw2"},
			snap: Snapshot{"hw1": StatusReviewing},
			want: Changed,
		},
		{
			name: "empty status first seen",
			item: Item{KeyStatus: "", KeyHomeworkName: "hw3"},
			snap: Snapshot{},
			want: Changed,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Detect(tt.item, tt.snap)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDetect_MissingFields(t *testing.T) {
	t.Parallel()

	_, err := Detect(Item{KeyHomeworkName: "hw1"}, Snapshot{})
	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, KeyStatus, missing.Field)

	_, err = Detect(Item{KeyStatus: "approved"}, Snapshot{})
	require.ErrorAs(t, err, &missing)
	require.Equal(t, KeyHomeworkName, missing.Field)
}

func TestCompose_KnownStatuses(t *testing.T) {
	t.Parallel()

	for _, status := range []Status{StatusApproved, StatusReviewing, StatusRejected} {
		status := status
		t.Run(string(status), func(t *testing.T) {
			t.Parallel()
			sentence, ok := status.Sentence()
			require.True(t, ok)
			text, unknown := Compose(Item{KeyStatus: string(status), KeyHomeworkName: "hw1"})
			require.Equal(t, sentence, text)
			require.Empty(t, unknown)
		})
	}
}

func TestCompose_FieldOrder(t *testing.T) {
	t.Parallel()

	item := Item{
		KeyReviewerComment: "Отлично",
		KeyStatus:          "approved",
		KeyLessonName:      "Итоговый проект",
		KeyHomeworkName:    "hw1",
	}
	text, unknown := Compose(item)
	require.Empty(t, unknown)
	require.Equal(t,
		"Изменился статус проверки работы - Итоговый проект. "+
			"Работа проверена: ревьюеру всё понравилось. Ура! "+
			"Комментарий ревьюера: Отлично.",
		text,
	)
}

func TestCompose_UnknownStatusDegrades(t *testing.T) {
	t.Parallel()

	text, unknown := Compose(Item{KeyStatus: "archived", KeyHomeworkName: "hw1"})
	require.Equal(t, Status("archived"), unknown)
	require.Equal(t, "Отсутствует значение у ключа status: archived.", text)
}

func TestCompose_SkipsEmptyFields(t *testing.T) {
	t.Parallel()

	text, unknown := Compose(Item{KeyStatus: "", KeyLessonName: "", KeyReviewerComment: ""})
	require.Empty(t, text)
	require.Empty(t, unknown)
}

func TestItemRecord_FillsZeroValues(t *testing.T) {
	t.Parallel()

	items, err := Validate(decode(t, `{
		"homeworks":[
			{"id":123456789012,"status":"rejected","homework_name":"hw1","reviewer_comment":"fix","date_updated":"2022-01-01T00:00:00Z","lesson_name":"L1"},
			{"status":"approved","homework_name":"hw2"}
		],
		"current_date":1
	}`))
	require.NoError(t, err)

	require.Equal(t, Record{
		ID:              123456789012,
		Status:          StatusRejected,
		HomeworkName:    "hw1",
		ReviewerComment: "fix",
		DateUpdated:     "2022-01-01T00:00:00Z",
		LessonName:      "L1",
	}, items[0].Record())
	require.Equal(t, Record{Status: StatusApproved, HomeworkName: "hw2"}, items[1].Record())
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"Эндпоинт: https://api.example/hw недоступен. Код ответа API: 404",
		(&ResponseCodeError{Code: 404, Endpoint: "https://api.example/hw"}).Error(),
	)
	require.Equal(t,
		"Эндпоинт: https://api.example/hw ответил с кодом: 500",
		(&ResponseCodeError{Code: 500, Endpoint: "https://api.example/hw"}).Error(),
	)
	require.Equal(t, "Список работ пуст", ErrEmptyResult.Error())
	require.Equal(t,
		"Отсутствует обязательная переменная окружения: PRACTICUM_TOKEN",
		(&ConfigError{Variable: "PRACTICUM_TOKEN"}).Error(),
	)
}

func TestKind(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{&ConfigError{Variable: "X"}, "config"},
		{&RequestError{Err: base}, "request"},
		{&ResponseCodeError{Code: 500}, "response_code"},
		{&TypeError{}, "type"},
		{&MissingFieldError{Field: "x"}, "missing_field"},
		{fmt.Errorf("validate: %w", ErrEmptyResult), "empty_result"},
		{&PersistenceError{Err: base}, "persistence"},
		{&SendError{Err: base}, "send"},
		{base, "unknown"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Kind(tt.err))
	}
	require.ErrorIs(t, &RequestError{Err: base}, base)
}
