package model

import (
	"github.com/SourceRegistry/cel-lite/internal/policy"
	"gorm.io/gorm"
)

func (p *Policy) BeforeCreate(tx *gorm.DB) (err error) {
	return policy.Validate(p.Expr)
}

func (p *Policy) BeforeUpdate(tx *gorm.DB) (err error) {
	if tx.Statement.Changed("Expr") {
		return policy.Validate(p.Expr)
	}
	return nil
}
