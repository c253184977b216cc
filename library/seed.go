package library

// Default data used to seed a fresh store. The demo accounts carry legacy
// plaintext credentials on purpose: their first login exercises the
// upgrade-on-login path and rewrites them as bcrypt hashes.

// DefaultUsers returns the seed identity partitions.
func DefaultUsers() *Identity {
	return &Identity{
		Students: []*User{
			{ID: "E25CSEU1187", Username: "sairam", Password: "sairam123", Name: "Sairam R",
				Contact: "+91 9876543210", Email: "sairam@example.com"},
			{ID: "B24ECE0045", Username: "student2", Password: "student123", Name: "Student 2",
				Contact: "+91 9876543211", Email: "student2@example.com"},
		},
		Teachers: []*User{
			{ID: "T25CSED101", Username: "prof_bohra", Password: "teacher123", Name: "Prof Bohra",
				Contact: "+91 9876543220", Email: "bohra@example.com"},
			{ID: "P24MATH205", Username: "prof_jd", Password: "teacher123", Name: "Prof JD",
				Contact: "+91 9876543221", Email: "profjd@example.com"},
		},
		Admins: []*User{
			{ID: "ADMIN001", Username: "admin", Password: "admin123", Name: "Administrator",
				Contact: NotProvided, Email: NotProvided},
		},
	}
}

// DefaultBooks returns the seed catalog partitions.
func DefaultBooks() *Catalog {
	return &Catalog{
		StudentBooks: []*Book{
			{ID: "B001", Title: "Pride & Prejudice", Author: "Jane Austen", Copies: 3, Available: 3},
			{ID: "B002", Title: "Crime & Punishment", Author: "Dostoevsky", Copies: 2, Available: 2},
			{ID: "B003", Title: "One Hundred Years of Solitude", Author: "Gabriel García Márquez", Copies: 2, Available: 2},
			{ID: "B004", Title: "1984", Author: "George Orwell", Copies: 4, Available: 4},
			{ID: "B005", Title: "The Hunger Games", Author: "Suzanne Collins", Copies: 3, Available: 3},
		},
		TeacherBooks: []*Book{
			{ID: "T001", Title: "R.D. Sharma Mathematics", Author: "R.D. Sharma", Copies: 5, Available: 5},
			{ID: "T002", Title: "NCERT Science", Author: "NCERT", Copies: 10, Available: 10},
			{ID: "T003", Title: "Psychology of Prejudice", Author: "Various", Copies: 2, Available: 2},
		},
	}
}
