package database

import (
	"time"

	"gorm.io/gorm"
)

// CallLog records one voice call seen or injected on the network.
type CallLog struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	RepeaterIP   string    `gorm:"index;size:45" json:"repeater_ip"`
	Callsign     string    `gorm:"size:20" json:"callsign"`
	Timeslot     int       `gorm:"not null" json:"timeslot"`
	SrcID        uint32    `gorm:"index;not null" json:"src_id"`
	DstID        uint32    `gorm:"index;not null" json:"dst_id"`
	CallType     string    `gorm:"size:10" json:"call_type"`
	StartTime    time.Time `gorm:"index;not null" json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Duration     float64   `json:"duration"` // Duration in seconds
	TerminatedBy string    `gorm:"size:15" json:"terminated_by"` // terminator or timeout
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for CallLog
func (CallLog) TableName() string {
	return "call_logs"
}

// BeforeCreate hook to ensure timestamps are set
func (c *CallLog) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.StartTime.IsZero() {
		c.StartTime = time.Now()
	}
	return nil
}

// SMSLog records the final outcome of one queued SMS.
type SMSLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	DstID     uint32    `gorm:"index;not null" json:"dst_id"`
	SrcID     uint32    `gorm:"not null" json:"src_id"`
	CallType  string    `gorm:"size:10" json:"call_type"`
	SMSType   string    `gorm:"size:15" json:"sms_type"`
	Msg       string    `gorm:"size:1024" json:"msg"`
	Delivered bool      `json:"delivered"`
	SendTries int       `json:"send_tries"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for SMSLog
func (SMSLog) TableName() string {
	return "sms_logs"
}
