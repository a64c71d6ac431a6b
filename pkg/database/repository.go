package database

import (
	"gorm.io/gorm"
)

// CallLogRepository handles call log database operations
type CallLogRepository struct {
	db *gorm.DB
}

// NewCallLogRepository creates a new call log repository
func NewCallLogRepository(db *gorm.DB) *CallLogRepository {
	return &CallLogRepository{db: db}
}

// Create adds a new call record
func (r *CallLogRepository) Create(call *CallLog) error {
	return r.db.Create(call).Error
}

// GetRecent retrieves the most recent N calls
func (r *CallLogRepository) GetRecent(limit int) ([]CallLog, error) {
	var calls []CallLog
	err := r.db.Order("start_time DESC").Limit(limit).Find(&calls).Error
	return calls, err
}

// GetBySrcID retrieves calls from a specific radio
func (r *CallLogRepository) GetBySrcID(srcID uint32, limit int) ([]CallLog, error) {
	var calls []CallLog
	err := r.db.Where("src_id = ?", srcID).
		Order("start_time DESC").
		Limit(limit).
		Find(&calls).Error
	return calls, err
}

// SMSLogRepository handles SMS log database operations
type SMSLogRepository struct {
	db *gorm.DB
}

// NewSMSLogRepository creates a new SMS log repository
func NewSMSLogRepository(db *gorm.DB) *SMSLogRepository {
	return &SMSLogRepository{db: db}
}

// Create adds a new SMS record
func (r *SMSLogRepository) Create(sms *SMSLog) error {
	return r.db.Create(sms).Error
}

// GetRecent retrieves the most recent N SMS records
func (r *SMSLogRepository) GetRecent(limit int) ([]SMSLog, error) {
	var records []SMSLog
	err := r.db.Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}
