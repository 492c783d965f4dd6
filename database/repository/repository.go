package repository

import (
	bookingRepo "mia/database/repository/booking"
	invoiceRepo "mia/database/repository/invoice"
	paymentRepo "mia/database/repository/payment"
	profileRepo "mia/database/repository/profile"
	userRepo "mia/database/repository/user"
)

// Re-export the BookingRepository interface and constructor.
type BookingRepository = bookingRepo.BookingRepository

var NewMongoBookingRepo = bookingRepo.NewMongoBookingRepo

// Re-export the InvoiceRepository interface and constructor.
type InvoiceRepository = invoiceRepo.InvoiceRepository

var NewMongoInvoiceRepo = invoiceRepo.NewMongoInvoiceRepo

// Re-export the PaymentRepository interface and constructor.
type PaymentRepository = paymentRepo.PaymentRepository

var NewMongoPaymentRepo = paymentRepo.NewMongoPaymentRepo

// Re-export the ProfileRepository interface and constructor.
type ProfileRepository = profileRepo.ProfileRepository

var NewMongoProfileRepo = profileRepo.NewMongoProfileRepo

// Re-export the UserRepository interface and constructor.
type UserRepository = userRepo.UserRepository

var NewMongoUserRepository = userRepo.NewMongoUserRepo
