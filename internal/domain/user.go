package domain

type Address struct {
	ID        string `bson:"_id" json:"id"`
	HouseName string `bson:"house_name,omitempty" json:"house_name,omitempty"`
	Street    string `bson:"street,omitempty" json:"street,omitempty"`
	Landmark  string `bson:"landmark,omitempty" json:"landmark,omitempty"`
	City      string `bson:"city,omitempty" json:"city,omitempty"`
	District  string `bson:"district,omitempty" json:"district,omitempty"`
	State     string `bson:"state,omitempty" json:"state,omitempty"`
	Country   string `bson:"country,omitempty" json:"country,omitempty"`
	Pincode   string `bson:"pincode,omitempty" json:"pincode,omitempty"`
}

// User is the slice of the user profile the order core reads: its address book.
type User struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name,omitempty" json:"name,omitempty"`
	Email     string    `bson:"email,omitempty" json:"email,omitempty"`
	Addresses []Address `bson:"address" json:"address"`
}

func (u *User) Address(id string) (*Address, bool) {
	for i := range u.Addresses {
		if u.Addresses[i].ID == id {
			return &u.Addresses[i], true
		}
	}
	return nil, false
}
