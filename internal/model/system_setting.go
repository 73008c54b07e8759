package model

// 配置值类型
const (
	SettingString  = "string"
	SettingBoolean = "boolean"
	SettingInteger = "integer"
	SettingFloat   = "float"
)

// SystemSetting 系统设置表 — 对应 system_settings（强类型键值对）
type SystemSetting struct {
	Key         string `gorm:"type:varchar(100);primaryKey"                json:"key"`
	Value       string `gorm:"type:text;not null"                          json:"value"`
	ValueType   string `gorm:"type:varchar(20);not null;default:'string'"  json:"value_type"`
	Description string `gorm:"type:varchar(500);not null;default:''"       json:"description"`
	BaseModel
}

// TableName 指定表名
func (SystemSetting) TableName() string { return "system_settings" }
