package mongo

import "time"

func timeFromUnix(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}

func unixFromTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func unixFromTimePtr(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.Unix()
}

func timePtrFromUnix(v int64) *time.Time {
	if v == 0 {
		return nil
	}
	t := timeFromUnix(v)
	return &t
}
