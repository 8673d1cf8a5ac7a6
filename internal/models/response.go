package models

import (
	"net/http"
	"time"
)

const envelopeVersion = 2

// ResponseModel is the envelope every JSON endpoint answers with. Error envelopes carry
// no data.
type ResponseModel struct {
	Code        int         `json:"code"`
	CurrentTime int64       `json:"currentTime"`
	Data        interface{} `json:"data,omitempty"`
	Text        string      `json:"text"`
	Version     int         `json:"version"`
}

// EntryData is the payload of single-entity responses.
type EntryData struct {
	Entry      interface{}     `json:"entry"`
	References ReferencesModel `json:"references"`
}

// ListData is the payload of collection responses. Collections are never paged, so
// LimitExceeded stays false.
type ListData struct {
	List          interface{}     `json:"list"`
	References    ReferencesModel `json:"references"`
	LimitExceeded bool            `json:"limitExceeded"`
}

func NewResponse(code int, data interface{}, text string) ResponseModel {
	return ResponseModel{
		Code:        code,
		CurrentTime: time.Now().UnixMilli(),
		Data:        data,
		Text:        text,
		Version:     envelopeVersion,
	}
}

func NewOKResponse(data interface{}) ResponseModel {
	return NewResponse(http.StatusOK, data, "OK")
}

func NewEntryResponse(entry interface{}, references ReferencesModel) ResponseModel {
	return NewOKResponse(EntryData{Entry: entry, References: references})
}

func NewListResponse(list interface{}, references ReferencesModel) ResponseModel {
	return NewOKResponse(ListData{List: list, References: references})
}

// NewErrorResponse builds the envelope for a failed request.
func NewErrorResponse(code int, text string) ResponseModel {
	return NewResponse(code, nil, text)
}
