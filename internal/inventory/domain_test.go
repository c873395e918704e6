package inventory

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidPrice(t *testing.T) {
	valid := []string{"LKR 300", "LKR 300.", "LKR 300.00", "LKR 0.123456789", "LKR 0"}
	for _, price := range valid {
		assert.True(t, ValidPrice(price), price)
	}
	invalid := []string{"", "300", "LKR", "LKR ", "lkr 300", "LKR  300", "LKR 300.1234567890", "LKR -1", "LKR 1,000", "USD 300", "LKR 300 "}
	for _, price := range invalid {
		assert.False(t, ValidPrice(price), price)
	}
}

func TestValidatorMessages(t *testing.T) {
	v := NewValidator()
	errs := v.Check(ItemFields{})
	assert.Equal(t, FieldErrors{
		"name":        "Please input the name of the item!",
		"price":       "Please input the price of the item!",
		"description": "Please input the item description!",
	}, errs)

	errs = v.Check(ItemFields{Name: "Tea", Description: "Black", Price: "300"})
	assert.Equal(t, FieldErrors{"price": "Price must be in the format 'LKR 300.00'"}, errs)

	assert.Nil(t, v.Check(ItemFields{Name: "Tea", Description: "Black", Price: "LKR 300.00"}))
}

func TestNormalizeTrimsEveryField(t *testing.T) {
	got := ItemForm{Name: "  Tea ", Price: "\tLKR 300.00 ", Description: " Black\n"}.Fields()
	assert.Equal(t, ItemFields{Name: "Tea", Description: "Black", Price: "LKR 300.00"}, got)
	assert.Nil(t, NewValidator().Check(got))

	blank := ItemForm{Name: "   ", Price: "LKR 1", Description: "x"}.Fields()
	assert.Contains(t, NewValidator().Check(blank), "name")
}

func TestFilterByName(t *testing.T) {
	items := []Item{
		{ID: "1", Name: "Ceylon Tea"},
		{ID: "2", Name: "Basmati Rice"},
		{ID: "3", Name: "TEA BAGS"},
		{ID: "4", Name: "Çay"},
	}
	ids := func(list []Item) []string {
		out := make([]string, len(list))
		for i, item := range list {
			out[i] = item.ID
		}
		return out
	}
	assert.Equal(t, []string{"1", "3"}, ids(FilterByName(items, "tea")))
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(FilterByName(items, "")))
	assert.Equal(t, []string{"4"}, ids(FilterByName(items, "ÇAY")))
	assert.Empty(t, FilterByName(items, "coffee"))
	assert.Empty(t, FilterByName(nil, "tea"))
}

func TestWriteCSVQuotesAndKeepsValues(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []Item{
		{Name: "Tea, black", Description: `Says "hi"`, Price: "LKR 300.00"},
		{Name: "Rice", Description: "line1\nline2", Price: "LKR 250"},
	})
	require.NoError(t, err)
	expected := "Name,Description,Price (LKR)\r\n" +
		"\"Tea, black\",\"Says \"\"hi\"\"\",LKR 300.00\r\n" +
		"Rice,\"line1\nline2\",LKR 250\r\n"
	assert.Equal(t, expected, buf.String())
}

func TestWriteCSVKeepsLineBreaksInsideFields(t *testing.T) {
	var buf bytes.Buffer
	items := []Item{
		{Name: "Rice", Description: "line1\nline2", Price: "LKR 250"},
		{Name: "Dhal", Description: "a\r\nb", Price: "LKR 90"},
	}
	require.NoError(t, WriteCSV(&buf, items))
	assert.Equal(t, "Name,Description,Price (LKR)\r\n"+
		"Rice,\"line1\nline2\",LKR 250\r\n"+
		"Dhal,\"a\r\nb\",LKR 90\r\n", buf.String())

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "line1\nline2", rows[1][1])
}

func TestWriteCSVEmptyHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "Name,Description,Price (LKR)\r\n", buf.String())
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		kind   ErrorKind
		status int
	}{
		{fmt.Errorf("update: %w", ErrNotFound), KindNotFound, http.StatusNotFound},
		{fmt.Errorf("create: %w", ErrDuplicateSubmission), KindConflict, http.StatusConflict},
		{FieldErrors{"price": "bad"}, KindValidation, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: price_check", ErrValidation), KindValidation, http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, KindNetwork, http.StatusBadGateway},
		{&net.OpError{Op: "dial", Err: timeoutErr{}}, KindNetwork, http.StatusBadGateway},
		{errors.New("boom"), KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		serr := Classify(opUpdate, "id-1", tc.err)
		require.NotNil(t, serr)
		assert.Equal(t, tc.kind, serr.Kind, tc.err.Error())
		assert.Equal(t, tc.status, serr.HTTPStatus())
		assert.NotEmpty(t, serr.UserMessage())
		assert.Equal(t, tc.err, errors.Unwrap(serr))
	}
	assert.Nil(t, Classify(opList, "", nil))

	fields := Classify(opCreate, "", FieldErrors{"price": "bad"})
	assert.Equal(t, map[string]string{"price": "bad"}, fields.FieldMessages())
	assert.True(t, errors.Is(fields, ErrValidation))
}
