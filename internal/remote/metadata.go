package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

// MasterRecordTypeID is the record type every object has, used when the
// object defines no record types of its own.
const MasterRecordTypeID = "012000000000000AAA"

// compositeBatchSize is the most subrequests one composite call accepts.
const compositeBatchSize = 25

// Request operation names, used as metric labels.
const (
	opQuery          = "query"
	opCompactLayouts = "compact_layouts"
	opComposite      = "composite"
	opLocalization   = "localization"
	opCreate         = "create"
	opUpdate         = "update"
)

type queryResponse struct {
	Done           bool   `json:"done"`
	NextRecordsURL string `json:"nextRecordsUrl"`
	Records        []struct {
		ID            string `json:"Id"`
		Name          string `json:"Name"`
		DeveloperName string `json:"DeveloperName"`
		SobjectType   string `json:"SobjectType"`
	} `json:"records"`
}

type compactLayoutsResponse struct {
	DefaultCompactLayoutID string `json:"defaultCompactLayoutId"`
	CompactLayouts         []struct {
		ID         string `json:"id"`
		FieldItems []struct {
			LayoutComponents []struct {
				Type  string `json:"type"`
				Value string `json:"value"`
			} `json:"layoutComponents"`
		} `json:"fieldItems"`
	} `json:"compactLayouts"`
	RecordTypeCompactLayoutMappings []struct {
		RecordTypeID    string `json:"recordTypeId"`
		CompactLayoutID string `json:"compactLayoutId"`
	} `json:"recordTypeCompactLayoutMappings"`
}

// titles maps compact layout id to the first field it shows.
func (r *compactLayoutsResponse) titles() map[string]string {
	out := make(map[string]string, len(r.CompactLayouts))
	for _, cl := range r.CompactLayouts {
		for _, item := range cl.FieldItems {
			for _, comp := range item.LayoutComponents {
				if comp.Type == "Field" && comp.Value != "" {
					out[cl.ID] = comp.Value
					break
				}
			}
			if out[cl.ID] != "" {
				break
			}
		}
	}
	return out
}

// FetchRecordTypes returns the active record types of the configured object,
// each paired with the title field of its compact layout. An object without
// record types yields the master record type alone.
func (c *Client) FetchRecordTypes(ctx context.Context) ([]types.RecordType, error) {
	object := c.cfg.ObjectName
	soql := fmt.Sprintf(
		"SELECT Id, Name, DeveloperName, SobjectType FROM RecordType WHERE SobjectType = '%s' AND IsActive = true ORDER BY Name",
		strings.ReplaceAll(object, "'", `\'`))

	var recordTypes []types.RecordType
	path := c.dataPath("/query?q=%s", url.QueryEscape(soql))
	for path != "" {
		var page queryResponse
		if _, err := c.do(ctx, opQuery, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		for _, r := range page.Records {
			recordTypes = append(recordTypes, types.RecordType{
				ID:            r.ID,
				ObjectName:    r.SobjectType,
				DeveloperName: r.DeveloperName,
				Label:         r.Name,
			})
		}
		path = ""
		if !page.Done {
			path = page.NextRecordsURL
		}
	}

	if len(recordTypes) == 0 {
		recordTypes = append(recordTypes, types.RecordType{
			ID:            MasterRecordTypeID,
			ObjectName:    object,
			DeveloperName: "Master",
			Label:         "Master",
		})
	}

	var compact compactLayoutsResponse
	if _, err := c.do(ctx, opCompactLayouts, http.MethodGet,
		c.dataPath("/sobjects/%s/describe/compactLayouts", object), nil, &compact); err != nil {
		return nil, err
	}
	titles := compact.titles()
	assigned := make(map[string]string, len(compact.RecordTypeCompactLayoutMappings))
	for _, m := range compact.RecordTypeCompactLayoutMappings {
		assigned[m.RecordTypeID] = m.CompactLayoutID
	}
	for i := range recordTypes {
		layoutID, ok := assigned[recordTypes[i].ID]
		if !ok {
			layoutID = compact.DefaultCompactLayoutID
		}
		recordTypes[i].CompactLayoutTitle = titles[layoutID]
	}

	c.log.Debugw("fetched record types", "object", object, "count", len(recordTypes))
	return recordTypes, nil
}

type compositeSubrequest struct {
	Method      string `json:"method"`
	URL         string `json:"url"`
	ReferenceID string `json:"referenceId"`
}

type compositeRequest struct {
	AllOrNone        bool                  `json:"allOrNone"`
	CompositeRequest []compositeSubrequest `json:"compositeRequest"`
}

type compositeResponse struct {
	CompositeResponse []struct {
		Body           json.RawMessage `json:"body"`
		HTTPStatusCode int             `json:"httpStatusCode"`
		ReferenceID    string          `json:"referenceId"`
	} `json:"compositeResponse"`
}

type layoutBody struct {
	ID                 string `json:"id"`
	EditLayoutSections []struct {
		LayoutSectionID string `json:"layoutSectionId"`
		Heading         string `json:"heading"`
		Columns         int    `json:"columns"`
		UseHeading      bool   `json:"useHeading"`
		LayoutRows      []struct {
			LayoutItems []struct {
				Label             string `json:"label"`
				Required          bool   `json:"required"`
				EditableForNew    bool   `json:"editableForNew"`
				EditableForUpdate bool   `json:"editableForUpdate"`
				LayoutComponents  []struct {
					Type    string        `json:"type"`
					Value   string        `json:"value"`
					Details *fieldDetails `json:"details"`
				} `json:"layoutComponents"`
			} `json:"layoutItems"`
		} `json:"layoutRows"`
	} `json:"editLayoutSections"`
}

type fieldDetails struct {
	Name           string `json:"name"`
	Label          string `json:"label"`
	Type           string `json:"type"`
	PicklistValues []struct {
		Value        string `json:"value"`
		Label        string `json:"label"`
		DefaultValue bool   `json:"defaultValue"`
		Active       bool   `json:"active"`
	} `json:"picklistValues"`
}

// toLayout flattens a describe-layout body into a LayoutDescription. Rows
// are read left to right, top to bottom. Returns a no_editable_fields error
// when no field of the layout can be edited.
func (b *layoutBody) toLayout(recordTypeID string) (types.LayoutDescription, error) {
	layout := types.LayoutDescription{ID: b.ID, RecordTypeID: recordTypeID}
	fieldIndex := make(map[string]int)
	editable := false

	for _, s := range b.EditLayoutSections {
		section := types.SectionDescription{
			ID:         s.LayoutSectionID,
			Heading:    s.Heading,
			Columns:    s.Columns,
			UseHeading: s.UseHeading,
		}
		for _, row := range s.LayoutRows {
			for _, item := range row.LayoutItems {
				for _, comp := range item.LayoutComponents {
					if comp.Type != "Field" || comp.Value == "" {
						continue
					}
					canEdit := item.EditableForNew || item.EditableForUpdate
					editable = editable || canEdit
					section.Items = append(section.Items, types.ItemDescription{
						FieldName: comp.Value,
						Label:     item.Label,
						Required:  item.Required,
						Editable:  canEdit,
					})
					if i, ok := fieldIndex[comp.Value]; ok {
						layout.Fields[i].Editable = layout.Fields[i].Editable || canEdit
					} else if comp.Details != nil {
						fieldIndex[comp.Value] = len(layout.Fields)
						f := comp.Details.toField(comp.Value)
						f.Editable = canEdit
						layout.Fields = append(layout.Fields, f)
					}
				}
			}
		}
		layout.Sections = append(layout.Sections, section)
	}

	if !editable {
		return layout, &types.RemoteError{
			Code:    types.CodeNoEditableFields,
			Message: fmt.Sprintf("layout %s for record type %s has no editable fields", b.ID, recordTypeID),
		}
	}
	return layout, nil
}

func (d *fieldDetails) toField(name string) types.FieldDescription {
	f := types.FieldDescription{Name: name, Label: d.Label, Type: d.Type}
	for _, pv := range d.PicklistValues {
		f.PicklistValues = append(f.PicklistValues, types.PicklistOption{
			Value:     pv.Value,
			Label:     pv.Label,
			IsDefault: pv.DefaultValue,
			Active:    pv.Active,
		})
	}
	return f
}

// DescribeLayouts fetches the edit layout of every record type through
// composite requests of at most compositeBatchSize subrequests. A record type
// the remote does not know yields an invalid_record_type error.
func (c *Client) DescribeLayouts(ctx context.Context, objectName string, recordTypeIDs []string) (*types.CompositeLayoutResponse, error) {
	out := &types.CompositeLayoutResponse{}
	for start := 0; start < len(recordTypeIDs); start += compositeBatchSize {
		end := min(start+compositeBatchSize, len(recordTypeIDs))
		layouts, err := c.describeBatch(ctx, objectName, recordTypeIDs[start:end])
		if err != nil {
			return nil, err
		}
		out.Layouts = append(out.Layouts, layouts...)
	}

	c.log.Debugw("described layouts", "object", objectName, "layouts", len(out.Layouts))
	return out, nil
}

func (c *Client) describeBatch(ctx context.Context, objectName string, recordTypeIDs []string) ([]types.LayoutDescription, error) {
	req := compositeRequest{}
	for i, id := range recordTypeIDs {
		req.CompositeRequest = append(req.CompositeRequest, compositeSubrequest{
			Method:      http.MethodGet,
			URL:         c.dataPath("/sobjects/%s/describe/layouts/%s", objectName, id),
			ReferenceID: fmt.Sprintf("layout%d", i),
		})
	}

	var resp compositeResponse
	if _, err := c.do(ctx, opComposite, http.MethodPost, c.dataPath("/composite"), req, &resp); err != nil {
		return nil, err
	}
	if len(resp.CompositeResponse) != len(recordTypeIDs) {
		return nil, &types.RemoteError{Message: fmt.Sprintf(
			"composite returned %d responses for %d record types", len(resp.CompositeResponse), len(recordTypeIDs))}
	}

	layouts := make([]types.LayoutDescription, 0, len(recordTypeIDs))
	for i, sub := range resp.CompositeResponse {
		rtID := recordTypeIDs[i]
		if sub.HTTPStatusCode >= 400 {
			re := decodeError(sub.HTTPStatusCode, sub.Body)
			if sub.HTTPStatusCode == http.StatusNotFound || re.Code == "not_found" {
				re.Code = types.CodeInvalidRecordType
				re.Message = fmt.Sprintf("record type %s: %s", rtID, re.Message)
			}
			return nil, re
		}
		var body layoutBody
		if err := json.Unmarshal(sub.Body, &body); err != nil {
			return nil, &types.RemoteError{StatusCode: sub.HTTPStatusCode, Message: "decode layout " + rtID, Err: err}
		}
		layout, err := body.toLayout(rtID)
		if err != nil {
			return nil, err
		}
		layouts = append(layouts, layout)
	}
	return layouts, nil
}

// FetchLocalization returns the translated labels for the configured
// language.
func (c *Client) FetchLocalization(ctx context.Context) ([]types.LocalizationEntry, error) {
	path := "/services/apexrest/localization?language=" + url.QueryEscape(c.cfg.Language)
	var entries []types.LocalizationEntry
	if _, err := c.do(ctx, opLocalization, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Language == "" {
			entries[i].Language = c.cfg.Language
		}
	}
	return entries, nil
}
