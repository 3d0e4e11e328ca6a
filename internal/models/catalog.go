package models

import "time"

type Country struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Description  *string    `json:"description,omitempty"`
	ImageURL     *string    `json:"imageUrl,omitempty"`
	VisaInfo     *string    `json:"visaInfo,omitempty"`
	CostOfLiving *string    `json:"costOfLiving,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

type City struct {
	ID          int64      `json:"id"`
	CountryID   int64      `json:"countryId"`
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	ImageURL    *string    `json:"imageUrl,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

type University struct {
	ID          int64      `json:"id"`
	CountryID   int64      `json:"countryId"`
	CityID      *int64     `json:"cityId,omitempty"`
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	Website     *string    `json:"website,omitempty"`
	ImageURL    *string    `json:"imageUrl,omitempty"`
	Ranking     *int64     `json:"ranking,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

type Program struct {
	ID             int64      `json:"id"`
	UniversityID   int64      `json:"universityId"`
	Name           string     `json:"name"`
	Level          string     `json:"level"`
	Field          *string    `json:"field,omitempty"`
	Language       *string    `json:"language,omitempty"`
	DurationMonths *int64     `json:"durationMonths,omitempty"`
	TuitionFee     *float64   `json:"tuitionFee,omitempty"`
	Description    *string    `json:"description,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

type Guide struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Slug      string     `json:"slug"`
	Content   string     `json:"content"`
	ImageURL  *string    `json:"imageUrl,omitempty"`
	Published bool       `json:"published"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type Ad struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	ImageURL  *string    `json:"imageUrl,omitempty"`
	TargetURL *string    `json:"targetUrl,omitempty"`
	Active    bool       `json:"active"`
	StartsAt  *time.Time `json:"startsAt,omitempty"`
	EndsAt    *time.Time `json:"endsAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}
