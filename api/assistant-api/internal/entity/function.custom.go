// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_entity

import (
	"encoding/json"

	gorm_model "github.com/rapidaai/voice/pkg/models/gorm"
)

type PayloadMode string

const (
	PayloadModeArgsOnly    PayloadMode = "args_only"
	PayloadModeFullContext PayloadMode = "full_context"
)

// CustomFunction is a webhook-backed tool definition. parameters is a JSON
// Schema object handed to the model as-is; response_mapping maps output
// keys to dotted paths into the webhook response.
type CustomFunction struct {
	gorm_model.Audited
	Name                 string      `json:"name" gorm:"column:name;type:varchar(200);not null;uniqueIndex"`
	Description          string      `json:"description" gorm:"column:description;type:text;not null;default:''"`
	Parameters           string      `json:"parameters" gorm:"column:parameters;type:text;not null;default:'{}'"`
	WebhookUrl           string      `json:"webhookUrl" gorm:"column:webhook_url;type:text;not null"`
	HttpMethod           string      `json:"httpMethod" gorm:"column:http_method;type:varchar(10);not null;default:'POST'"`
	Headers              string      `json:"headers" gorm:"column:headers;type:text;not null;default:'{}'"`
	TimeoutSeconds       uint32      `json:"timeoutSeconds" gorm:"column:timeout_seconds;type:int;not null;default:30"`
	RetryCount           uint32      `json:"retryCount" gorm:"column:retry_count;type:int;not null;default:0"`
	ResponseMapping      string      `json:"responseMapping" gorm:"column:response_mapping;type:text;not null;default:''"`
	SpeakDuringExecution string      `json:"speakDuringExecution" gorm:"column:speak_during_execution;type:text;not null;default:''"`
	SpeakOnFailure       string      `json:"speakOnFailure" gorm:"column:speak_on_failure;type:text;not null;default:''"`
	PayloadMode          PayloadMode `json:"payloadMode" gorm:"column:payload_mode;type:varchar(20);not null;default:'args_only'"`
	StoreVariables       bool        `json:"storeVariables" gorm:"column:store_variables;not null;default:false"`
	IsActive             bool        `json:"isActive" gorm:"column:is_active;not null;default:true"`
}

func (CustomFunction) TableName() string {
	return "custom_functions"
}

// ParameterSchema decodes the JSON Schema column. Malformed schemas read
// as an empty object so the tool still registers.
func (f *CustomFunction) ParameterSchema() map[string]interface{} {
	schema := map[string]interface{}{}
	if f.Parameters != "" {
		_ = json.Unmarshal([]byte(f.Parameters), &schema)
	}
	return schema
}

func (f *CustomFunction) HeaderMap() map[string]string {
	headers := map[string]string{}
	if f.Headers != "" {
		_ = json.Unmarshal([]byte(f.Headers), &headers)
	}
	return headers
}

// MappingPaths decodes response_mapping; empty means the raw response is
// passed through untouched.
func (f *CustomFunction) MappingPaths() map[string]string {
	if f.ResponseMapping == "" {
		return nil
	}
	paths := map[string]string{}
	if err := json.Unmarshal([]byte(f.ResponseMapping), &paths); err != nil {
		return nil
	}
	return paths
}
