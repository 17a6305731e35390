package model

import "time"

type Document struct {
	ID         int64     `json:"id"          db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	UserID     int64     `json:"user_id"     db:"user_id"     gorm:"column:user_id;not null;index"`
	User       *User     `json:"-"                             gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Filename   string    `json:"filename"    db:"filename"    gorm:"column:filename;not null"`
	FilePath   string    `json:"file_path"   db:"file_path"   gorm:"column:file_path;not null;uniqueIndex"`
	FileSize   int64     `json:"file_size"   db:"file_size"   gorm:"column:file_size;not null"`
	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at" gorm:"column:uploaded_at;autoCreateTime"`

	Transactions []*Transaction `json:"-" gorm:"many2many:transaction_documents"`
}

func (Document) TableName() string { return "documents" }
