package models

import (
	"strings"
	"time"
)

// Address 收货/账单地址
type Address struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	FirstName      string    `gorm:"type:varchar(256)" json:"first_name"`
	LastName       string    `gorm:"type:varchar(256)" json:"last_name"`
	CompanyName    string    `gorm:"type:varchar(256)" json:"company_name"`
	StreetAddress1 string    `gorm:"type:varchar(256)" json:"street_address_1"`
	StreetAddress2 string    `gorm:"type:varchar(256)" json:"street_address_2"`
	City           string    `gorm:"type:varchar(256)" json:"city"`
	CityArea       string    `gorm:"type:varchar(128)" json:"city_area"`
	PostalCode     string    `gorm:"type:varchar(20)" json:"postal_code"`
	Country        string    `gorm:"type:varchar(2);index;not null" json:"country"` // ISO 3166-1 alpha-2
	CountryArea    string    `gorm:"type:varchar(128)" json:"country_area"`
	Phone          string    `gorm:"type:varchar(32)" json:"phone"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Address) TableName() string {
	return "addresses"
}

// CountryCode 返回大写国家代码
func (a *Address) CountryCode() string {
	if a == nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(a.Country))
}
