package easyappointments

// Category groups services.
type Category struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
}

func (c *Category) resourceID() int64 { return c.ID }
func (c *Category) clearID()          { c.ID = 0 }

// CategoriesService manages service categories at /categories.
type CategoriesService struct {
	*ResourceService[Category, *Category]
}
