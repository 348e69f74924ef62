// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package gorm_model

import (
	"time"

	gorm_generator "github.com/rapidaai/voice/pkg/models/gorm/generators"
	"gorm.io/gorm"
)

// Audited is the base set of columns shared by every persisted entity:
// a pre-generated bigint primary key plus create/update timestamps.
// Embed it at the top of the entity struct.
type Audited struct {
	Id          uint64    `json:"id" gorm:"type:bigint;primaryKey;<-:create"`
	CreatedDate time.Time `json:"createdDate" gorm:"type:timestamp;not null;default:NOW();<-:create"`
	UpdatedDate time.Time `json:"updatedDate" gorm:"type:timestamp;default:null"`
}

func (a *Audited) BeforeCreate(tx *gorm.DB) (err error) {
	if a.Id <= 0 {
		a.Id = gorm_generator.ID()
	}
	if a.CreatedDate.IsZero() {
		a.CreatedDate = time.Now()
	}
	return nil
}

func (a *Audited) BeforeUpdate(tx *gorm.DB) (err error) {
	a.UpdatedDate = time.Now()
	return nil
}
