package submitter

import (
	"fmt"
	"sort"
	"strings"

	"transportagent/internal/model"
	"transportagent/internal/transport"
)

// Option names sent in request_options
const (
	OptionProgramName      = "PROGRAMNAME"
	OptionDateRange        = "DATERANGE"
	OptionExclusivePricing = "EXCLUSIVE_PRICING_SRC"
)

// RequestSettings are the static parts of every request
type RequestSettings struct {
	Description     string
	RequestorCode   string
	ResponseFormat  string
	Options         map[string]string
	MandatoryFields []string
}

// BuildRequest serializes a batch into the transport request schema
func BuildRequest(batch model.Batch, settings RequestSettings) (*transport.Request, error) {
	if len(batch.Items) == 0 {
		return nil, fmt.Errorf("batch %d has no items", batch.ID)
	}

	seen := make(map[string]bool, len(batch.Items))
	items := make([]transport.RequestDataItem, 0, len(batch.Items))
	for _, item := range batch.Items {
		tag := item.Tag()
		if seen[tag] {
			return nil, fmt.Errorf("batch %d: duplicate correlation tag %s", batch.ID, tag)
		}
		seen[tag] = true
		items = append(items, transport.RequestDataItem{
			BbgQuery: item.Query(),
			Tag:      tag,
		})
	}

	return &transport.Request{
		RequestDescription: settings.Description,
		RequestorCode:      settings.RequestorCode,
		ProgramCode:        batch.Key.ProgramCode,
		InterfaceCode:      batch.Key.InterfaceCode,
		ResponseFormatCode: settings.ResponseFormat,
		RequestDataItems:   items,
		RequestOptions:     requestOptions(batch.Key, settings.Options),
		RequestFields:      requestFields(batch.Items, settings.MandatoryFields),
	}, nil
}

// requestFields returns the distinct requested mnemonics, sorted, followed by
// the mandatory mnemonics that were not requested explicitly
func requestFields(items []model.RequestItem, mandatory []string) []string {
	seen := make(map[string]bool)
	var fields []string
	for _, item := range items {
		m := strings.TrimSpace(item.Mnemonic)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		fields = append(fields, m)
	}
	sort.Strings(fields)

	for _, m := range mandatory {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		fields = append(fields, m)
	}
	return fields
}

func requestOptions(key model.BatchKey, static map[string]string) []transport.RequestOption {
	values := make(map[string]string, len(static)+3)
	for name, value := range static {
		if value != "" {
			values[name] = value
		}
	}

	values[OptionProgramName] = strings.ToLower(key.ProgramCode)
	if key.ProgramCode == model.ProgramGetHistory {
		values[OptionDateRange] = key.DateRange()
	}
	if key.ExclusivePricing {
		values[OptionExclusivePricing] = "yes"
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	options := make([]transport.RequestOption, 0, len(names))
	for _, name := range names {
		options = append(options, transport.RequestOption{
			OptionName:  name,
			OptionValue: values[name],
		})
	}
	return options
}
