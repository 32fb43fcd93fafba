package datastore

import "time"

// Analysis is one persisted ingest request. Optional numeric fields are nil
// when absent; they are never stored as NaN, infinity or a zero sentinel.
type Analysis struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	Filename   string      `gorm:"type:varchar(512);not null" json:"filename"`
	MimeType   string      `gorm:"column:mimetype;type:varchar(255)" json:"mimetype"`
	FileSize   int64       `gorm:"not null;default:0" json:"file_size"`
	Lat        *float64    `json:"lat"`
	Lon        *float64    `json:"lon"`
	MinConf    *float64    `gorm:"column:min_conf" json:"min_conf"`
	CreatedAt  time.Time   `gorm:"autoCreateTime;index" json:"created_at"`
	Detections []Detection `gorm:"foreignKey:AnalysisID;constraint:OnDelete:CASCADE" json:"detections"`
}

// TableName returns the table name for GORM.
func (Analysis) TableName() string {
	return "analyses"
}

// Detection is one labeled, time-ranged result belonging to an Analysis.
type Detection struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	AnalysisID     uint    `gorm:"not null;index" json:"analysis_id"`
	CommonName     string  `gorm:"type:varchar(255)" json:"common_name"`
	ScientificName string  `gorm:"type:varchar(255)" json:"scientific_name"`
	Confidence     float64 `json:"confidence"`
	StartTime      float64 `json:"start_time"`
	EndTime        float64 `json:"end_time"`
}

// TableName returns the table name for GORM.
func (Detection) TableName() string {
	return "detections"
}

// AnalysisInput carries the request metadata for RecordAnalysis.
type AnalysisInput struct {
	Filename string
	MimeType string
	FileSize int64
	Lat      *float64
	Lon      *float64
	MinConf  *float64
}
