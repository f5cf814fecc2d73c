package entity

import "time"

// Subject - предмет, верхний уровень каталога
type Subject struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:140;not null" json:"name"`
	Description string    `gorm:"size:500;not null;default:''" json:"description"`
	Chapters    []Chapter `gorm:"foreignKey:SubjectID" json:"chapters,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Subject) TableName() string {
	return "subjects"
}

// Chapter - раздел предмета
type Chapter struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:140;not null" json:"name"`
	Description string    `gorm:"size:500;not null;default:''" json:"description"`
	SubjectID   uint      `gorm:"not null;index" json:"subject_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Chapter) TableName() string {
	return "chapters"
}
