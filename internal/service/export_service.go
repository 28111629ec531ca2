package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/export"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/storage"
)

// ExportService renders course rosters and waitlists as CSV or PDF
// downloads, optionally archiving a copy on disk.
type ExportService struct {
	registrations *RegistrationService
	csv           *export.CSVExporter
	pdf           *export.PDFExporter
	archive       *storage.LocalStorage
	logger        *zap.Logger
}

// NewExportService constructs the exporter.
func NewExportService(registrations *RegistrationService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		registrations: registrations,
		csv:           export.NewCSVExporter(),
		pdf:           export.NewPDFExporter(),
		logger:        logger,
	}
}

// WithArchive keeps a copy of every rendered export in local storage.
func (s *ExportService) WithArchive(archive *storage.LocalStorage) *ExportService {
	s.archive = archive
	return s
}

// RosterCSV renders the enrolled-student roster for one course.
func (s *ExportService) RosterCSV(ctx context.Context, courseID string) ([]byte, string, error) {
	table, course, err := s.rosterTable(ctx, courseID)
	if err != nil {
		return nil, "", err
	}

	data, err := s.csv.Render(table)
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("roster_%s.csv", course)
	s.archiveCopy(filename, data)
	return data, filename, nil
}

// RosterPDF renders the enrolled-student roster for one course.
func (s *ExportService) RosterPDF(ctx context.Context, courseID string) ([]byte, string, error) {
	table, course, err := s.rosterTable(ctx, courseID)
	if err != nil {
		return nil, "", err
	}

	subtitle := fmt.Sprintf("Generated %s", time.Now().UTC().Format("2006-01-02 15:04 UTC"))
	data, err := s.pdf.Render(table, fmt.Sprintf("Course Roster %s", course), subtitle)
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("roster_%s.pdf", course)
	s.archiveCopy(filename, data)
	return data, filename, nil
}

// WaitlistCSV renders the ranked waitlist for one course.
func (s *ExportService) WaitlistCSV(ctx context.Context, courseID string) ([]byte, string, error) {
	table, course, err := s.waitlistTable(ctx, courseID)
	if err != nil {
		return nil, "", err
	}

	data, err := s.csv.Render(table)
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("waitlist_%s.csv", course)
	s.archiveCopy(filename, data)
	return data, filename, nil
}

// WaitlistPDF renders the ranked waitlist for one course.
func (s *ExportService) WaitlistPDF(ctx context.Context, courseID string) ([]byte, string, error) {
	table, course, err := s.waitlistTable(ctx, courseID)
	if err != nil {
		return nil, "", err
	}

	subtitle := fmt.Sprintf("Generated %s", time.Now().UTC().Format("2006-01-02 15:04 UTC"))
	data, err := s.pdf.Render(table, fmt.Sprintf("Waitlist %s", course), subtitle)
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("waitlist_%s.pdf", course)
	s.archiveCopy(filename, data)
	return data, filename, nil
}

// archiveCopy is best effort; a failed archive never fails the download.
func (s *ExportService) archiveCopy(filename string, data []byte) {
	if s.archive == nil {
		return
	}
	if _, err := s.archive.Save(filename, data); err != nil {
		s.logger.Warn("archive export failed", zap.String("filename", filename), zap.Error(err))
	}
}

func (s *ExportService) rosterTable(ctx context.Context, courseID string) (export.Table, string, error) {
	course, err := s.registrations.GetCourse(courseID)
	if err != nil {
		return export.Table{}, "", err
	}

	table := export.Table{Columns: []string{"Student ID", "Name", "Email", "GPA", "Year"}}
	for _, studentID := range s.registrations.allocator.EnrolledStudents(courseID) {
		student, err := s.registrations.GetStudent(studentID)
		if err != nil {
			// Enrollment map can reference students added out of band.
			table.Rows = append(table.Rows, []string{studentID, "", "", "", ""})
			continue
		}
		table.Rows = append(table.Rows, []string{
			student.StudentID,
			student.Name,
			student.Email,
			fmt.Sprintf("%.2f", student.GPA),
			fmt.Sprintf("%d", student.Year),
		})
	}

	return table, course.CourseID, nil
}

func (s *ExportService) waitlistTable(ctx context.Context, courseID string) (export.Table, string, error) {
	course, err := s.registrations.GetCourse(courseID)
	if err != nil {
		return export.Table{}, "", err
	}

	entries, err := s.registrations.FullWaitlist(ctx, courseID)
	if err != nil {
		return export.Table{}, "", err
	}

	table := export.Table{Columns: []string{"Position", "Student ID", "Name", "Score"}}
	for i, entry := range entries {
		name := ""
		if student, err := s.registrations.GetStudent(entry.StudentID); err == nil {
			name = student.Name
		}
		table.Rows = append(table.Rows, []string{
			fmt.Sprintf("%d", i+1),
			entry.StudentID,
			name,
			fmt.Sprintf("%.4f", entry.Score),
		})
	}

	return table, course.CourseID, nil
}
